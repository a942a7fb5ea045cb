package server

import "github.com/tickforge/tickforge/internal/core/ecs"

// Inbound message types, discriminated by the "type" field.
const (
	MsgJoin  = "join"
	MsgInput = "input"
	MsgLeave = "leave"
)

// Outbound message types.
const (
	MsgGameState    = "gameState"
	MsgPlayerJoined = "playerJoined"
	MsgPlayerLeft   = "playerLeft"
	MsgError        = "error"
)

// Inbound is the union of all client messages. Fields beyond Type are
// populated per message kind: join/leave carry only PlayerID, input adds
// Keys and Timestamp.
type Inbound struct {
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId"`
	Keys      map[string]bool `json:"keys,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Outbound is the union of all server messages.
type Outbound struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId,omitempty"`
	EntityID ecs.EntityID `json:"entityId,omitempty"`
	Message  string       `json:"message,omitempty"`
	Data     *GameState   `json:"data,omitempty"`
}

func errorMessage(msg string) Outbound {
	return Outbound{Type: MsgError, Message: msg}
}
