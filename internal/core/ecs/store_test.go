package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tickforge/tickforge/internal/core/events/bus"
)

func TestCreateEntityIDsStrictlyIncrease(t *testing.T) {
	s := NewStore(nil, nil)

	seen := make(map[EntityID]bool)
	var last EntityID
	for i := 0; i < 100; i++ {
		id, err := s.CreateEntity()
		require.NoError(t, err)
		require.Greater(t, id, last)
		require.False(t, seen[id])
		seen[id] = true
		last = id
	}
}

func TestCreateEntityCapacity(t *testing.T) {
	s := NewStore(nil, nil, WithMaxEntities(2))

	_, err := s.CreateEntity()
	require.NoError(t, err)
	id2, err := s.CreateEntity()
	require.NoError(t, err)

	_, err = s.CreateEntity()
	require.ErrorIs(t, err, ErrCapacityExceeded)

	// capacity frees up after a destroy
	s.DestroyEntity(id2)
	_, err = s.CreateEntity()
	require.NoError(t, err)
}

func TestIDsNotReusedAfterDestroy(t *testing.T) {
	s := NewStore(nil, nil)

	id1, _ := s.CreateEntity()
	s.DestroyEntity(id1)
	id2, _ := s.CreateEntity()
	require.Greater(t, id2, id1)
}

func TestDestroyEntity(t *testing.T) {
	b := bus.New(nil)
	s := NewStore(b, nil)

	var destroyed []EntityID
	b.On(EventEntityDestroyed, func(e bus.Event) error {
		destroyed = append(destroyed, e.Data.(EntityEvent).EntityID)
		return nil
	})

	id, _ := s.CreateEntity()
	require.NoError(t, s.AddComponent(id, NewTransform(1, 2)))

	s.DestroyEntity(id)
	require.False(t, s.HasEntity(id))
	require.False(t, s.HasComponent(id, ComponentTransform))
	_, ok := s.GetComponent(id, ComponentTransform)
	require.False(t, ok)

	// destroying an unknown id is silent
	s.DestroyEntity(id)
	s.DestroyEntity(9999)
	require.Equal(t, []EntityID{id}, destroyed)
}

func TestAddComponentOverwrites(t *testing.T) {
	s := NewStore(nil, nil)
	id, _ := s.CreateEntity()

	require.NoError(t, s.AddComponent(id, NewTransform(1, 1)))
	require.NoError(t, s.AddComponent(id, NewTransform(7, 8)))

	tr, ok := Get[*Transform](s, id)
	require.True(t, ok)
	require.Equal(t, Vec2{7, 8}, tr.Position)
}

func TestAddComponentUnknownEntity(t *testing.T) {
	s := NewStore(nil, nil)
	err := s.AddComponent(42, NewTransform(0, 0))
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestRemoveComponent(t *testing.T) {
	b := bus.New(nil)
	s := NewStore(b, nil)

	removals := 0
	b.On(EventComponentRemoved, func(e bus.Event) error {
		removals++
		require.Equal(t, ComponentVelocity, e.Data.(ComponentRemovedEvent).ComponentType)
		return nil
	})

	id, _ := s.CreateEntity()
	require.NoError(t, s.AddComponent(id, &Velocity{}))

	require.NoError(t, s.RemoveComponent(id, ComponentVelocity))
	require.False(t, s.HasComponent(id, ComponentVelocity))

	// absent type is a silent no-op
	require.NoError(t, s.RemoveComponent(id, ComponentVelocity))
	require.Equal(t, 1, removals)

	err := s.RemoveComponent(404, ComponentVelocity)
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestQueries(t *testing.T) {
	s := NewStore(nil, nil)

	a, _ := s.CreateEntity()
	bID, _ := s.CreateEntity()
	c, _ := s.CreateEntity()

	require.NoError(t, s.AddComponent(a, NewTransform(0, 0)))
	require.NoError(t, s.AddComponent(a, &Velocity{}))
	require.NoError(t, s.AddComponent(bID, NewTransform(0, 0)))
	require.NoError(t, s.AddComponent(c, &Velocity{}))

	require.Equal(t, []EntityID{a, bID, c}, s.Entities())
	require.Equal(t, []EntityID{a, bID}, s.EntitiesWith(ComponentTransform))
	require.Equal(t, []EntityID{a}, s.EntitiesWithAll(ComponentTransform, ComponentVelocity))
	require.Empty(t, s.EntitiesWithAll(ComponentTransform, ComponentCollider))
}

func TestClearResetsIDCounter(t *testing.T) {
	s := NewStore(nil, nil)

	for i := 0; i < 5; i++ {
		_, err := s.CreateEntity()
		require.NoError(t, err)
	}
	s.Clear()
	require.Equal(t, 0, s.Count())

	id, err := s.CreateEntity()
	require.NoError(t, err)
	require.Equal(t, EntityID(1), id)
}

func TestLifecycleEvents(t *testing.T) {
	b := bus.New(nil)
	s := NewStore(b, nil)

	var types []string
	b.OnAll(func(e bus.Event) error {
		types = append(types, e.Type)
		return nil
	})

	id, _ := s.CreateEntity()
	_ = s.AddComponent(id, NewTransform(0, 0))
	_ = s.RemoveComponent(id, ComponentTransform)
	s.DestroyEntity(id)

	require.Equal(t, []string{
		EventEntityCreated,
		EventComponentAdded,
		EventComponentRemoved,
		EventEntityDestroyed,
	}, types)
}

func TestTypedGet(t *testing.T) {
	s := NewStore(nil, nil)
	id, _ := s.CreateEntity()
	require.NoError(t, s.AddComponent(id, &Collider{Width: 4, Height: 4, Mass: 1}))

	col, ok := Get[*Collider](s, id)
	require.True(t, ok)
	require.Equal(t, 4.0, col.Width)

	_, ok = Get[*Velocity](s, id)
	require.False(t, ok)
}
