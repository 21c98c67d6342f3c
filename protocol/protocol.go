/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol defines the messages peers exchange over a data channel.
//
// Every message travels as one JSON object tagged by its "type" field. The
// set of kinds is closed; anything else decodes to Unknown so that handlers
// can skip it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Seednode/graffiti/games/graffiti"
)

var ErrMalformed = errors.New("malformed message")

type Kind string

const (
	KindSyncState     Kind = "sync_state"
	KindPlayerJoined  Kind = "player_joined"
	KindPlayerLeft    Kind = "player_left"
	KindSpray         Kind = "spray"
	KindStartGame     Kind = "start_game"
	KindTimeUpdate    Kind = "time_update"
	KindGameEnd       Kind = "game_end"
	KindRequestState  Kind = "request_state"
	KindReturnToLobby Kind = "return_to_lobby"
)

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	isMessage()
}

// SyncState replaces the receiver's replica wholesale.
type SyncState struct {
	State graffiti.GameState
}

// PlayerJoined announces a new player to the host.
type PlayerJoined struct {
	Player graffiti.Player
}

type PlayerLeft struct {
	PlayerID string
}

// Spray carries one spray action. The host relays it to every other client.
type Spray struct {
	Event graffiti.SprayEvent
}

// StartGame begins a round with final team assignments.
type StartGame struct {
	State graffiti.GameState
}

type TimeUpdate struct {
	Time int
}

type GameEnd struct{}

// RequestState asks the host for a SyncState.
type RequestState struct{}

// ReturnToLobby tells clients the host reset the room to the lobby.
type ReturnToLobby struct{}

// Unknown is any message whose type this build does not recognise.
type Unknown struct {
	Type string
}

func (SyncState) Kind() Kind     { return KindSyncState }
func (PlayerJoined) Kind() Kind  { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind    { return KindPlayerLeft }
func (Spray) Kind() Kind         { return KindSpray }
func (StartGame) Kind() Kind     { return KindStartGame }
func (TimeUpdate) Kind() Kind    { return KindTimeUpdate }
func (GameEnd) Kind() Kind       { return KindGameEnd }
func (RequestState) Kind() Kind  { return KindRequestState }
func (ReturnToLobby) Kind() Kind { return KindReturnToLobby }
func (u Unknown) Kind() Kind     { return Kind(u.Type) }

func (SyncState) isMessage()     {}
func (PlayerJoined) isMessage()  {}
func (PlayerLeft) isMessage()    {}
func (Spray) isMessage()         {}
func (StartGame) isMessage()     {}
func (TimeUpdate) isMessage()    {}
func (GameEnd) isMessage()       {}
func (RequestState) isMessage()  {}
func (ReturnToLobby) isMessage() {}
func (Unknown) isMessage()       {}

// envelope is the wire shape shared by every kind. Unused fields are
// omitted.
type envelope struct {
	Type     Kind                 `json:"type"`
	State    *graffiti.GameState  `json:"state,omitempty"`
	Player   *graffiti.Player     `json:"player,omitempty"`
	PlayerID string               `json:"playerId,omitempty"`
	Event    *graffiti.SprayEvent `json:"event,omitempty"`
	Time     *int                 `json:"time,omitempty"`
}

func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind()}

	switch m := m.(type) {
	case SyncState:
		env.State = &m.State
	case PlayerJoined:
		env.Player = &m.Player
	case PlayerLeft:
		env.PlayerID = m.PlayerID
	case Spray:
		env.Event = &m.Event
	case StartGame:
		env.State = &m.State
	case TimeUpdate:
		env.Time = &m.Time
	case GameEnd, RequestState, ReturnToLobby:
	case Unknown:
		return nil, fmt.Errorf("encode %q: unknown message type", m.Type)
	}

	return json.Marshal(env)
}

// Decode parses one message. Payloads that are not a JSON object with a
// string type, or that lack a required field, fail with ErrMalformed.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	// A grid never crosses the wire; drop whatever a peer sent in its place.
	if env.State != nil {
		env.State.Grid = nil
	}

	switch env.Type {
	case KindSyncState:
		if env.State == nil {
			return nil, missing(env.Type, "state")
		}
		return SyncState{State: *env.State}, nil
	case KindPlayerJoined:
		if env.Player == nil {
			return nil, missing(env.Type, "player")
		}
		return PlayerJoined{Player: *env.Player}, nil
	case KindPlayerLeft:
		if env.PlayerID == "" {
			return nil, missing(env.Type, "playerId")
		}
		return PlayerLeft{PlayerID: env.PlayerID}, nil
	case KindSpray:
		if env.Event == nil {
			return nil, missing(env.Type, "event")
		}
		return Spray{Event: *env.Event}, nil
	case KindStartGame:
		if env.State == nil {
			return nil, missing(env.Type, "state")
		}
		return StartGame{State: *env.State}, nil
	case KindTimeUpdate:
		if env.Time == nil {
			return nil, missing(env.Type, "time")
		}
		return TimeUpdate{Time: *env.Time}, nil
	case KindGameEnd:
		return GameEnd{}, nil
	case KindRequestState:
		return RequestState{}, nil
	case KindReturnToLobby:
		return ReturnToLobby{}, nil
	case "":
		return nil, fmt.Errorf("%w: no type", ErrMalformed)
	}

	return Unknown{Type: string(env.Type)}, nil
}

func missing(k Kind, field string) error {
	return fmt.Errorf("%w: %s without %s", ErrMalformed, k, field)
}
