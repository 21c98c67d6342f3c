/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "github.com/Seednode/graffiti/games/graffiti"

type UpdateKind int

const (
	// UpdateState means players, teams or settings changed.
	UpdateState UpdateKind = iota
	UpdatePhase
	UpdateTime
	UpdateSpray
	// UpdateError carries a non-fatal problem, or a fatal one other than
	// losing the host.
	UpdateError
	UpdateHostLost
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdatePhase:
		return "phase"
	case UpdateTime:
		return "time"
	case UpdateSpray:
		return "spray"
	case UpdateError:
		return "error"
	case UpdateHostLost:
		return "host-lost"
	}
	return "unknown"
}

type Update struct {
	Kind  UpdateKind
	Phase graffiti.Phase
	Time  int
	Spray graffiti.SprayEvent
	Cells []graffiti.Cell
	Err   error
}

// View is a snapshot of everything a UI needs to draw one peer.
type View struct {
	Role   Role
	Code   string
	SelfID string

	// State is a deep copy, grid included.
	State graffiti.GameState
	Local graffiti.LocalPlayerState

	// Question is the question waiting for an answer, if any.
	Question *graffiti.Question

	Leaderboard []graffiti.Team

	// Err is set once the session has failed for good.
	Err error
}

// Self returns this peer's player record, if the replica has one yet.
func (v View) Self() (graffiti.Player, bool) {
	return v.State.Player(v.SelfID)
}
