/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import (
	"math"
	"math/rand/v2"
)

// Store is one peer's copy of the game state. On the host it is the
// authority; on clients it is a replica that Sync overwrites. All mutation
// goes through its methods.
type Store struct {
	state  GameState
	rng    *rand.Rand
	sprays *SprayLog
}

type StoreOption func(*Store)

// WithRand makes team shuffles reproducible.
func WithRand(r *rand.Rand) StoreOption {
	return func(s *Store) {
		s.rng = r
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:  NewGameState(),
		sprays: NewSprayLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// State returns a deep copy of the current state, grid included.
func (s *Store) State() GameState {
	return s.state.Clone()
}

func (s *Store) Phase() Phase {
	return s.state.Phase
}

func (s *Store) Player(id string) (Player, bool) {
	return s.state.Player(id)
}

// Owner reports the team painted at (x, y) on this peer's grid. The second
// result is false when no grid exists.
func (s *Store) Owner(x, y int) (byte, bool) {
	if s.state.Grid == nil {
		return Unowned, false
	}
	return s.state.Grid.Owner(x, y), true
}

func (s *Store) SetPhase(p Phase) {
	s.state.Phase = p
}

func (s *Store) SetWallType(w WallType) error {
	if !w.Valid() {
		return ErrInvalidWall
	}
	s.state.WallType = w
	return nil
}

// SetTeamCount clamps n to 1..TeamCapacity.
func (s *Store) SetTeamCount(n int) {
	s.state.TeamCount = max(1, min(TeamCapacity, n))
}

func (s *Store) SetHostID(id string) {
	s.state.HostID = id
}

// AddPlayer appends p, or replaces the player already holding p.ID.
func (s *Store) AddPlayer(p Player) {
	for i := range s.state.Players {
		if s.state.Players[i].ID == p.ID {
			s.state.Players[i] = p
			return
		}
	}
	s.state.Players = append(s.state.Players, p)
}

// RemovePlayer drops the player and every team membership it held.
func (s *Store) RemovePlayer(id string) bool {
	removed := false
	players := s.state.Players[:0]
	for _, p := range s.state.Players {
		if p.ID == id {
			removed = true
			continue
		}
		players = append(players, p)
	}
	s.state.Players = players
	s.stripMembership(id)
	return removed
}

func (s *Store) UpdatePlayer(id string, patch PlayerPatch) bool {
	for i := range s.state.Players {
		p := &s.state.Players[i]
		if p.ID != id {
			continue
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Score != nil {
			p.Score = *patch.Score
		}
		return true
	}
	return false
}

func (s *Store) UpdateTimeRemaining(seconds int) {
	s.state.TimeRemaining = max(0, seconds)
}

// InitGrid gives this peer a fresh, unowned grid and forgets every spray
// applied so far.
func (s *Store) InitGrid() {
	s.state.Grid = NewGrid()
	s.sprays.Reset()
}

// PaintCell claims one cell for team. Without a grid it does nothing.
func (s *Store) PaintCell(x, y, team int) bool {
	if s.state.Grid == nil {
		return false
	}
	return s.state.Grid.Set(x, y, team)
}

// ApplySpray paints ev unless this peer already applied it, returning the
// touched cells and whether it was new.
func (s *Store) ApplySpray(ev SprayEvent) ([]Cell, bool) {
	return s.sprays.Apply(s.state.Grid, ev)
}

func (s *Store) SprayHistory() []SprayEvent {
	return s.sprays.History()
}

// CalculateTerritories converts the grid into a one-decimal percentage per
// team. Rounding and unowned cells mean the total need not be 100.
func (s *Store) CalculateTerritories() {
	if s.state.Grid == nil {
		return
	}

	counts := s.state.Grid.Counts()
	total := float64(gridCells)

	for i := range s.state.Teams {
		id := s.state.Teams[i].ID
		if id < 0 || id >= TeamCapacity {
			continue
		}
		s.state.Teams[i].TerritoryPercent = math.Round(float64(counts[id])/total*1000) / 10
	}
}

// Serializable returns the snapshot sent to other peers: a deep copy with no
// grid.
func (s *Store) Serializable() GameState {
	out := s.state
	out.Grid = nil
	out = out.Clone()
	return out
}

// Sync replaces the replica with remote wholesale. The local grid survives;
// a grid from a remote peer is never trusted.
func (s *Store) Sync(remote GameState) {
	grid := s.state.Grid

	next := remote.Clone()
	next.Grid = grid
	if next.Players == nil {
		next.Players = []Player{}
	}
	next.Teams = normalizeTeams(next.Teams)

	s.state = next
}

// ResetGame returns to a brand-new lobby with nobody in it.
func (s *Store) ResetGame() {
	s.state = NewGameState()
	s.sprays.Reset()
}

// ResetToLobby keeps the players, host, wall and team count but clears teams,
// territory, the timer and the grid.
func (s *Store) ResetToLobby() {
	s.state.Phase = PhaseLobby
	s.state.TimeRemaining = GameDuration
	s.state.Grid = nil
	s.state.Teams = DefaultTeams()
	for i := range s.state.Players {
		s.state.Players[i].TeamID = NoTeam
	}
	s.sprays.Reset()
}

// normalizeTeams makes sure all six identities are present and in id order,
// keeping membership and territory from teams.
func normalizeTeams(teams []Team) []Team {
	out := DefaultTeams()
	for _, t := range teams {
		if t.ID < 0 || t.ID >= TeamCapacity {
			continue
		}
		if t.PlayerIDs != nil {
			out[t.ID].PlayerIDs = t.PlayerIDs
		}
		out[t.ID].TerritoryPercent = t.TerritoryPercent
	}
	return out
}
