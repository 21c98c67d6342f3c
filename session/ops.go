/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/protocol"
)

// View returns a deep copy of this peer's state.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View

	err := s.do(ctx, func() error {
		v = View{
			Role:        s.role,
			Code:        s.code,
			SelfID:      s.self,
			State:       s.store.State(),
			Local:       s.local.State(),
			Leaderboard: s.store.Leaderboard(),
			Err:         s.fatal,
		}
		if q, ok := s.local.Current(); ok {
			v.Question = &q
		}
		return nil
	})

	return v, err
}

func (s *Session) hostOp(ctx context.Context, phase graffiti.Phase, fn func() error) error {
	return s.do(ctx, func() error {
		switch {
		case s.fatal != nil:
			return s.fatal
		case s.role != RoleHost:
			return ErrNotHost
		case s.store.Phase() != phase:
			return fmt.Errorf("%w: %s", ErrWrongPhase, s.store.Phase())
		}
		return fn()
	})
}

// StartGame shuffles everyone onto teams and starts the round. Clients hear
// about it after StartDelay, and the countdown starts with them.
func (s *Session) StartGame(ctx context.Context) error {
	return s.hostOp(ctx, graffiti.PhaseLobby, func() error {
		s.store.RandomizeTeams()
		s.newRound()
		s.store.SetPhase(graffiti.PhasePlaying)
		s.store.UpdateTimeRemaining(s.opts.GameDuration)

		s.startT = time.NewTimer(s.opts.StartDelay)
		s.startC = s.startT.C

		s.log.Info("game starting", zap.Int("players", len(s.store.State().Players)))

		s.publishState()
		s.publish(Update{Kind: UpdatePhase, Phase: graffiti.PhasePlaying})

		return nil
	})
}

func (s *Session) beginCountdown() {
	if s.store.Phase() != graffiti.PhasePlaying {
		return
	}

	s.broadcast(protocol.StartGame{State: s.store.Serializable()})

	s.remaining = s.opts.GameDuration
	s.ticker = time.NewTicker(s.opts.TickInterval)
	s.tickC = s.ticker.C
}

func (s *Session) tick() {
	s.remaining--

	s.store.UpdateTimeRemaining(s.remaining)
	s.broadcast(protocol.TimeUpdate{Time: s.remaining})
	s.publish(Update{Kind: UpdateTime, Time: s.remaining})

	if s.remaining > 0 {
		return
	}

	s.stopTimers()
	s.finishGame()
	s.broadcast(protocol.GameEnd{})
}

// SetTeamCount picks how many teams the next game uses, clamped to 1..6.
func (s *Session) SetTeamCount(ctx context.Context, n int) error {
	return s.hostOp(ctx, graffiti.PhaseLobby, func() error {
		s.store.SetTeamCount(n)
		s.broadcast(protocol.SyncState{State: s.store.Serializable()})
		s.publishState()
		return nil
	})
}

func (s *Session) SetWallType(ctx context.Context, w graffiti.WallType) error {
	return s.hostOp(ctx, graffiti.PhaseLobby, func() error {
		if err := s.store.SetWallType(w); err != nil {
			return err
		}
		s.broadcast(protocol.SyncState{State: s.store.Serializable()})
		s.publishState()
		return nil
	})
}

// JoinTeam moves a player onto a team before the game starts.
func (s *Session) JoinTeam(ctx context.Context, playerID string, team int) error {
	return s.hostOp(ctx, graffiti.PhaseLobby, func() error {
		if err := s.store.JoinTeam(playerID, team); err != nil {
			return err
		}
		s.broadcast(protocol.SyncState{State: s.store.Serializable()})
		s.publishState()
		return nil
	})
}

// ReturnToLobby ends the current round, or leaves the leaderboard, keeping
// everyone in the room.
func (s *Session) ReturnToLobby(ctx context.Context) error {
	return s.do(ctx, func() error {
		switch {
		case s.fatal != nil:
			return s.fatal
		case s.role != RoleHost:
			return ErrNotHost
		case s.store.Phase() == graffiti.PhaseLobby:
			return fmt.Errorf("%w: %s", ErrWrongPhase, graffiti.PhaseLobby)
		}

		s.resetToLobby()
		s.broadcast(protocol.ReturnToLobby{})
		s.broadcast(protocol.SyncState{State: s.store.Serializable()})

		return nil
	})
}

func (s *Session) playerOp(ctx context.Context, fn func() error) error {
	return s.do(ctx, func() error {
		switch {
		case s.fatal != nil:
			return s.fatal
		case s.store.Phase() != graffiti.PhasePlaying:
			return fmt.Errorf("%w: %s", ErrWrongPhase, s.store.Phase())
		case s.startC != nil:
			// Clients have no grid until the round is announced.
			return fmt.Errorf("%w: round not announced yet", ErrWrongPhase)
		}
		return fn()
	})
}

// AnswerQuestion answers the current question with option and arms a can.
// It reports whether the answer was correct.
func (s *Session) AnswerQuestion(ctx context.Context, option int) (bool, error) {
	var correct bool

	err := s.playerOp(ctx, func() error {
		var err error
		correct, err = s.local.Answer(option)
		return err
	})

	return correct, err
}

// validPoint reports whether (x, y) lies on the normalised wall.
func validPoint(x, y float64) bool {
	return x >= 0 && x <= 1 && y >= 0 && y <= 1
}

// Spray paints at the normalised point (x, y) for this player's team and
// sends the event on. The local grid is painted whether or not the send
// succeeds.
func (s *Session) Spray(ctx context.Context, x, y float64) (graffiti.SprayEvent, error) {
	var ev graffiti.SprayEvent

	err := s.playerOp(ctx, func() error {
		if !validPoint(x, y) {
			return fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, x, y)
		}

		me, ok := s.store.Player(s.self)
		if !ok || me.TeamID < 0 {
			return ErrNoTeam
		}
		if !s.local.CanSpray() {
			return ErrNoCan
		}

		ts := time.Now().UnixNano()
		if ts <= s.lastSpray {
			ts = s.lastSpray + 1
		}

		next := graffiti.SprayEvent{
			PlayerID:  s.self,
			TeamID:    me.TeamID,
			X:         x,
			Y:         y,
			CanType:   s.local.State().CanType,
			Timestamp: ts,
		}

		data, err := protocol.Encode(protocol.Spray{Event: next})
		if err != nil {
			return err
		}

		ev = next
		s.lastSpray = ts

		cells, _ := s.store.ApplySpray(ev)
		s.local.Drain(graffiti.DrainRate)
		s.publish(Update{Kind: UpdateSpray, Spray: ev, Cells: cells})

		if s.role == RoleHost {
			s.relay(nil, data)
			return nil
		}

		if err := s.hostConn.Send(data); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil
	})

	return ev, err
}
