// Package protocol is the binary wire format spoken over the game websocket.
//
// Every frame is a msgpack envelope {type, data}. The data shape depends on
// the type:
//
//	player:update  client -> server  {packetId, inputs}
//	game:join      server -> client  {gameId, playerId, mapUrl}
//	game:update    server -> client  {lastPacketId, gameState}
//	game:end       server -> client  {scores, standings}
package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"bombersplash/internal/game"
)

// Message types
const (
	TypePlayerUpdate = "player:update"
	TypeGameJoin     = "game:join"
	TypeGameUpdate   = "game:update"
	TypeGameEnd      = "game:end"
)

var (
	ErrUnknownType = errors.New("protocol: unknown message type")
	ErrMalformed   = errors.New("protocol: malformed message")
)

// Envelope is the outer frame. Data stays encoded until the type is known.
type Envelope struct {
	Type string             `msgpack:"type"`
	Data msgpack.RawMessage `msgpack:"data"`
}

// PlayerUpdate carries one frame of controller input. PacketID grows by one
// per frame and is echoed back in game:update for client reconciliation.
type PlayerUpdate struct {
	PacketID uint32      `msgpack:"packetId"`
	Inputs   game.Inputs `msgpack:"inputs"`
}

// GameJoin tells a client which match and player it was given
type GameJoin struct {
	GameID   string `msgpack:"gameId"`
	PlayerID string `msgpack:"playerId"`
	MapURL   string `msgpack:"mapUrl"`
}

// GameUpdate is the periodic state push. GameState is an encoded
// game.State, shared by every client of a broadcast.
type GameUpdate struct {
	LastPacketID uint32             `msgpack:"lastPacketId"`
	GameState    msgpack.RawMessage `msgpack:"gameState"`
}

// GameEnd carries the final scores
type GameEnd struct {
	Scores    map[string]int  `msgpack:"scores"`
	Standings []game.Standing `msgpack:"standings"`
}

func knownType(t string) bool {
	switch t {
	case TypePlayerUpdate, TypeGameJoin, TypeGameUpdate, TypeGameEnd:
		return true
	}
	return false
}

// Encode wraps data in an envelope of the given type
func Encode(msgType string, data interface{}) ([]byte, error) {
	if !knownType(msgType) {
		return nil, fmt.Errorf("encode %q: %w", msgType, ErrUnknownType)
	}
	raw, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return msgpack.Marshal(&Envelope{Type: msgType, Data: raw})
}

// Decode reads an envelope, leaving its data encoded
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if len(frame) == 0 {
		return env, ErrMalformed
	}
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !knownType(env.Type) {
		return env, fmt.Errorf("decode %q: %w", env.Type, ErrUnknownType)
	}
	return env, nil
}

// Unmarshal decodes the envelope data into v
func (e Envelope) Unmarshal(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s without data: %w", e.Type, ErrMalformed)
	}
	if err := msgpack.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// DecodePlayerUpdate decodes a client frame, rejecting any other type
func DecodePlayerUpdate(frame []byte) (PlayerUpdate, error) {
	var u PlayerUpdate
	env, err := Decode(frame)
	if err != nil {
		return u, err
	}
	if env.Type != TypePlayerUpdate {
		return u, fmt.Errorf("expected %s, got %s: %w", TypePlayerUpdate, env.Type, ErrUnknownType)
	}
	err = env.Unmarshal(&u)
	return u, err
}

// EncodeState encodes a match state once so it can be embedded in many
// game:update frames.
func EncodeState(st *game.State) (msgpack.RawMessage, error) {
	return msgpack.Marshal(st)
}

// EncodeGameUpdate builds a game:update frame around a pre-encoded state
func EncodeGameUpdate(lastPacketID uint32, state msgpack.RawMessage) ([]byte, error) {
	return Encode(TypeGameUpdate, &GameUpdate{LastPacketID: lastPacketID, GameState: state})
}

// EncodeGameEnd builds a game:end frame
func EncodeGameEnd(scores map[string]int) ([]byte, error) {
	return Encode(TypeGameEnd, &GameEnd{Scores: scores, Standings: game.Standings(scores)})
}

// EncodeGameJoin builds a game:join frame
func EncodeGameJoin(j GameJoin) ([]byte, error) {
	return Encode(TypeGameJoin, &j)
}
