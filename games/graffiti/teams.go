/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import (
	"cmp"
	"slices"
)

func (s *Store) stripMembership(id string) {
	for i := range s.state.Teams {
		s.state.Teams[i].PlayerIDs = slices.DeleteFunc(s.state.Teams[i].PlayerIDs, func(p string) bool {
			return p == id
		})
	}
}

// JoinTeam moves a player onto team. A player is a member of at most one
// team, so every other membership is dropped first.
func (s *Store) JoinTeam(playerID string, team int) error {
	if team < 0 || team >= len(s.state.Teams) {
		return ErrInvalidTeam
	}

	idx := slices.IndexFunc(s.state.Players, func(p Player) bool {
		return p.ID == playerID
	})
	if idx < 0 {
		return ErrPlayerNotFound
	}

	s.stripMembership(playerID)

	s.state.Players[idx].TeamID = team
	s.state.Teams[team].PlayerIDs = append(s.state.Teams[team].PlayerIDs, playerID)

	return nil
}

// RandomizeTeams shuffles the players and deals them round-robin onto the
// first TeamCount teams, so no two team sizes differ by more than one. The
// player list keeps the shuffled order.
func (s *Store) RandomizeTeams() {
	n := max(1, min(TeamCapacity, s.state.TeamCount))

	players := slices.Clone(s.state.Players)
	for i := len(players) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		players[i], players[j] = players[j], players[i]
	}

	for i := range s.state.Teams {
		s.state.Teams[i].PlayerIDs = []string{}
	}

	for i := range players {
		team := i % n
		players[i].TeamID = team
		s.state.Teams[team].PlayerIDs = append(s.state.Teams[team].PlayerIDs, players[i].ID)
	}

	s.state.Players = players
}

// Leaderboard ranks the teams that have members by territory, largest
// first. Ties keep team id order.
func (s *Store) Leaderboard() []Team {
	var ranked []Team
	for _, t := range s.state.Teams {
		if len(t.PlayerIDs) == 0 {
			continue
		}
		t.PlayerIDs = slices.Clone(t.PlayerIDs)
		ranked = append(ranked, t)
	}

	slices.SortStableFunc(ranked, func(a, b Team) int {
		return cmp.Compare(b.TerritoryPercent, a.TerritoryPercent)
	})

	return ranked
}
