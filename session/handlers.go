/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/protocol"
	"github.com/Seednode/graffiti/transport"
)

func (s *Session) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnection:
		s.onConnection(ev.Conn)
	case transport.EventOpen:
		// Clients are handed an open channel by Join; hosts never dial.
	case transport.EventData:
		msg, err := protocol.Decode(ev.Data)
		if err != nil {
			s.log.Debug("dropping message", zap.String("from", ev.Conn.Peer()), zap.Error(err))
			return
		}
		s.handleMessage(ev.Conn, msg, ev.Data)
	case transport.EventClose:
		s.onClose(ev.Conn)
	case transport.EventError:
		s.onError(ev.Conn, ev.Err)
	}
}

func (s *Session) onConnection(c transport.Conn) {
	if s.role != RoleHost {
		s.log.Debug("refusing inbound channel", zap.String("from", c.Peer()))
		_ = c.Close()
		return
	}

	if old, ok := s.conns[c.Peer()]; ok && old != c {
		_ = old.Close()
	}
	s.conns[c.Peer()] = c

	s.log.Debug("client connected", zap.String("peer", c.Peer()), zap.Int("clients", len(s.conns)))
}

func (s *Session) onClose(c transport.Conn) {
	if s.role == RoleClient {
		if c == s.hostConn {
			s.fail(ErrHostDisconnected)
		}
		return
	}

	peer := c.Peer()
	if s.conns[peer] != c {
		return
	}
	delete(s.conns, peer)

	s.log.Debug("client disconnected", zap.String("peer", peer), zap.Int("clients", len(s.conns)))

	if s.store.RemovePlayer(peer) {
		s.broadcast(protocol.PlayerLeft{PlayerID: peer})
		s.publishState()
	}
}

func (s *Session) onError(c transport.Conn, err error) {
	switch {
	case c == nil:
		s.fail(fmt.Errorf("%w: %w", ErrTransport, err))
	case s.role == RoleClient && c == s.hostConn:
		s.fail(fmt.Errorf("%w: %w", ErrHostDisconnected, err))
	default:
		s.log.Debug("channel error", zap.String("peer", c.Peer()), zap.Error(err))
		s.publish(Update{Kind: UpdateError, Err: fmt.Errorf("%w: %w", ErrTransport, err)})
	}
}

// hostOnly lists the kinds only a host may send. A host that receives one
// from a client drops it.
func hostOnly(k protocol.Kind) bool {
	switch k {
	case protocol.KindSyncState, protocol.KindPlayerLeft, protocol.KindStartGame,
		protocol.KindTimeUpdate, protocol.KindGameEnd, protocol.KindReturnToLobby:
		return true
	}
	return false
}

func (s *Session) handleMessage(from transport.Conn, msg protocol.Message, raw []byte) {
	if s.role == RoleHost && hostOnly(msg.Kind()) {
		s.log.Debug("ignoring host-only message from client", zap.String("from", from.Peer()), zap.String("kind", string(msg.Kind())))
		return
	}

	switch m := msg.(type) {
	case protocol.SyncState:
		s.onSyncState(m.State)
	case protocol.PlayerJoined:
		s.onPlayerJoined(from, m.Player)
	case protocol.PlayerLeft:
		if s.store.RemovePlayer(m.PlayerID) {
			s.publishState()
		}
	case protocol.Spray:
		s.onSpray(from, m.Event, raw)
	case protocol.StartGame:
		s.adoptStart(m.State)
	case protocol.TimeUpdate:
		s.store.UpdateTimeRemaining(m.Time)
		s.publish(Update{Kind: UpdateTime, Time: m.Time})
	case protocol.GameEnd:
		s.finishGame()
	case protocol.RequestState:
		if s.role == RoleHost {
			s.send(from, protocol.SyncState{State: s.store.Serializable()})
		}
	case protocol.ReturnToLobby:
		s.resetToLobby()
	default:
		s.log.Debug("ignoring unknown message", zap.String("from", from.Peer()), zap.String("kind", string(msg.Kind())))
	}
}

func (s *Session) onSyncState(state graffiti.GameState) {
	before := s.store.Phase()

	s.store.Sync(state)
	s.publishState()

	if after := s.store.Phase(); after != before {
		s.publish(Update{Kind: UpdatePhase, Phase: after})
	}
}

// onPlayerJoined admits a client. Only the channel decides who the player
// is; the record's id, team and host flag are overwritten.
func (s *Session) onPlayerJoined(from transport.Conn, p graffiti.Player) {
	if s.role != RoleHost {
		return
	}

	p.ID = from.Peer()
	p.TeamID = graffiti.NoTeam
	p.IsHost = false
	p.Score = 0
	if p.Name == "" {
		p.Name = "Player " + p.ID[max(0, len(p.ID)-4):]
	}

	s.store.AddPlayer(p)

	s.log.Info("player joined", zap.String("id", p.ID), zap.String("name", p.Name))

	s.broadcast(protocol.SyncState{State: s.store.Serializable()})
	s.publishState()
}

// onSpray paints a remote spray. The host only accepts a client's own
// sprays for the team it is on, and relays them before painting.
func (s *Session) onSpray(from transport.Conn, ev graffiti.SprayEvent, raw []byte) {
	if !validPoint(ev.X, ev.Y) {
		s.log.Debug("dropping spray off the wall", zap.String("from", from.Peer()), zap.Float64("x", ev.X), zap.Float64("y", ev.Y))
		return
	}

	if s.role == RoleHost {
		p, ok := s.store.Player(from.Peer())
		if !ok || ev.PlayerID != p.ID || ev.TeamID != p.TeamID {
			s.log.Debug("dropping spray for another player or team",
				zap.String("from", from.Peer()),
				zap.String("player", ev.PlayerID),
				zap.Int("team", ev.TeamID),
			)
			return
		}
		s.relay(from, raw)
	}

	cells, applied := s.store.ApplySpray(ev)
	if applied {
		s.publish(Update{Kind: UpdateSpray, Spray: ev, Cells: cells})
	}
}

// adoptStart switches a client into the round the host announced.
func (s *Session) adoptStart(state graffiti.GameState) {
	s.store.Sync(state)
	s.newRound()
	s.store.SetPhase(graffiti.PhasePlaying)

	s.publishState()
	s.publish(Update{Kind: UpdatePhase, Phase: graffiti.PhasePlaying})
}

// newRound resets per-game local state: an empty grid, a fresh question
// order and an unarmed can.
func (s *Session) newRound() {
	s.store.InitGrid()
	s.local.Reset(graffiti.Shuffled(s.opts.Questions, s.opts.Rand))
}

// finishGame ranks the teams from this peer's own grid.
func (s *Session) finishGame() {
	s.store.CalculateTerritories()
	s.store.SetPhase(graffiti.PhaseLeaderboard)

	s.log.Info("game over", zap.Any("leaderboard", s.store.Leaderboard()))

	s.publishState()
	s.publish(Update{Kind: UpdatePhase, Phase: graffiti.PhaseLeaderboard})
}

func (s *Session) resetToLobby() {
	s.stopTimers()
	s.store.ResetToLobby()
	s.local.Reset(nil)

	s.publishState()
	s.publish(Update{Kind: UpdatePhase, Phase: graffiti.PhaseLobby})
}

func (s *Session) send(c transport.Conn, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode failed", zap.String("kind", string(msg.Kind())), zap.Error(err))
		return
	}

	if err := c.Send(data); err != nil {
		s.log.Debug("send failed", zap.String("to", c.Peer()), zap.String("kind", string(msg.Kind())), zap.Error(err))
	}
}

// broadcast sends msg to every open client channel.
func (s *Session) broadcast(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode failed", zap.String("kind", string(msg.Kind())), zap.Error(err))
		return
	}

	for peer, c := range s.conns {
		if c.State() != transport.StateOpen {
			continue
		}
		if err := c.Send(data); err != nil {
			s.log.Debug("send failed", zap.String("to", peer), zap.String("kind", string(msg.Kind())), zap.Error(err))
		}
	}
}

// relay forwards raw to every client except from, which may be nil.
func (s *Session) relay(from transport.Conn, raw []byte) {
	for peer, c := range s.conns {
		if c == from || c.State() != transport.StateOpen {
			continue
		}
		if err := c.Send(raw); err != nil {
			s.log.Debug("relay failed", zap.String("to", peer), zap.Error(err))
		}
	}
}
