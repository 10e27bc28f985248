package game

import (
	"encoding/json"
	"time"
)

// EventType classifies match events
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeMatchStart
	EventTypePlayerJoin
	EventTypePlayerLeave
	EventTypeBombPlaced
	EventTypeBombExploded
	EventTypeMatchEnd
)

// EventVersion is bumped when payloads change shape
const EventVersion uint8 = 1

// Event is one line of the match event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix nano
	Sequence  uint64          `json:"sequence"`
	Tick      uint64          `json:"tick"`
	MatchID   string          `json:"matchId"`
	PlayerID  string          `json:"playerId,omitempty"` // rate limiting key
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (t EventType) String() string {
	switch t {
	case EventTypeMatchStart:
		return "match_start"
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	case EventTypeBombPlaced:
		return "bomb_placed"
	case EventTypeBombExploded:
		return "bomb_exploded"
	case EventTypeMatchEnd:
		return "match_end"
	default:
		return "unknown"
	}
}

// MarshalText writes the type by name so the log stays readable
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MatchStartPayload describes a new match
type MatchStartPayload struct {
	Map      string   `json:"map"`
	Teams    []string `json:"teams"`
	Walls    int      `json:"walls"`
	Duration int64    `json:"durationMs"`
}

// PlayerJoinPayload describes a join
type PlayerJoinPayload struct {
	Team   string  `json:"team"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// BombPayload describes a placed or exploded bomb
type BombPayload struct {
	BombID string  `json:"bombId"`
	Team   string  `json:"team"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
}

// MatchEndPayload carries the final scores
type MatchEndPayload struct {
	Scores map[string]int `json:"scores"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(eventType EventType, tick uint64, matchID, playerID string, payload interface{}) Event {
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Tick:      tick,
		MatchID:   matchID,
		PlayerID:  playerID,
		Payload:   raw,
	}
}
