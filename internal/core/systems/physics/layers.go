package physics

import "github.com/tickforge/tickforge/internal/core/ecs"

// layerTable lists, per layer, the layers it is permitted to collide with.
// The table is consulted symmetrically: a pair collides if either side lists
// the other. Some entries are deliberately one-sided (PICKUP lists only
// PLAYER, so enemies and projectiles pass through pickups, while walls stop
// everything that lists them).
var layerTable = map[ecs.Layer][]ecs.Layer{
	ecs.LayerDefault: {
		ecs.LayerDefault, ecs.LayerPlayer, ecs.LayerEnemy,
		ecs.LayerProjectile, ecs.LayerWall, ecs.LayerPickup, ecs.LayerTrigger,
	},
	ecs.LayerPlayer: {
		ecs.LayerDefault, ecs.LayerEnemy, ecs.LayerWall,
		ecs.LayerPickup, ecs.LayerTrigger,
	},
	ecs.LayerEnemy: {
		ecs.LayerDefault, ecs.LayerPlayer, ecs.LayerProjectile, ecs.LayerWall,
	},
	ecs.LayerProjectile: {
		ecs.LayerDefault, ecs.LayerEnemy, ecs.LayerWall,
	},
	ecs.LayerWall: {
		ecs.LayerDefault, ecs.LayerPlayer, ecs.LayerEnemy, ecs.LayerProjectile,
	},
	ecs.LayerPickup: {
		ecs.LayerPlayer,
	},
	ecs.LayerTrigger: {
		ecs.LayerPlayer,
	},
}

// Collidable reports whether the two layers may collide. Checked both ways:
// b in a's allowed set or a in b's.
func Collidable(a, b ecs.Layer) bool {
	return listed(a, b) || listed(b, a)
}

func listed(owner, other ecs.Layer) bool {
	for _, l := range layerTable[owner] {
		if l == other {
			return true
		}
	}
	return false
}
