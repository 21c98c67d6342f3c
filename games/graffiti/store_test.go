/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) StoreOption {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func storeWithPlayers(t *testing.T, n int, opts ...StoreOption) *Store {
	t.Helper()
	s := NewStore(opts...)
	for i := range n {
		s.AddPlayer(Player{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i), TeamID: NoTeam})
	}
	return s
}

func memberships(state GameState) map[string]int {
	seen := make(map[string]int)
	for _, team := range state.Teams {
		for _, id := range team.PlayerIDs {
			seen[id]++
		}
	}
	return seen
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore()
	state := s.State()

	assert.Equal(t, PhaseLobby, state.Phase)
	assert.Equal(t, WallSchool, state.WallType)
	assert.Equal(t, GameDuration, state.TimeRemaining)
	assert.Equal(t, DefaultTeamCount, state.TeamCount)
	assert.Empty(t, state.Players)
	assert.Nil(t, state.Grid)
	require.Len(t, state.Teams, TeamCapacity)
	for i, team := range state.Teams {
		assert.Equal(t, i, team.ID)
		assert.NotNil(t, team.PlayerIDs)
	}
}

func TestAddPlayer_ReplacesExisting(t *testing.T) {
	s := NewStore()
	s.AddPlayer(Player{ID: "a", Name: "first", TeamID: NoTeam})
	s.AddPlayer(Player{ID: "a", Name: "second", TeamID: NoTeam})

	state := s.State()
	require.Len(t, state.Players, 1)
	assert.Equal(t, "second", state.Players[0].Name)
}

func TestJoinTeam_NoDoubleMembership(t *testing.T) {
	s := storeWithPlayers(t, 4)
	r := rand.New(rand.NewPCG(7, 11))

	for range 500 {
		id := fmt.Sprintf("p%d", r.IntN(4))
		require.NoError(t, s.JoinTeam(id, r.IntN(TeamCapacity)))

		state := s.State()
		for pid, count := range memberships(state) {
			assert.Equal(t, 1, count, "player %s in %d teams", pid, count)
		}
		for _, p := range state.Players {
			if p.TeamID == NoTeam {
				continue
			}
			assert.Contains(t, state.Teams[p.TeamID].PlayerIDs, p.ID)
		}
	}
}

func TestJoinTeam_Errors(t *testing.T) {
	s := storeWithPlayers(t, 1)
	before := s.State()

	assert.ErrorIs(t, s.JoinTeam("p0", TeamCapacity), ErrInvalidTeam)
	assert.ErrorIs(t, s.JoinTeam("p0", -1), ErrInvalidTeam)
	assert.ErrorIs(t, s.JoinTeam("ghost", 0), ErrPlayerNotFound)

	assert.Empty(t, cmp.Diff(before, s.State()))
}

func TestRemovePlayer_PurgesMembership(t *testing.T) {
	s := storeWithPlayers(t, 3)
	require.NoError(t, s.JoinTeam("p1", 2))

	assert.True(t, s.RemovePlayer("p1"))
	assert.False(t, s.RemovePlayer("p1"))

	state := s.State()
	assert.Len(t, state.Players, 2)
	assert.NotContains(t, memberships(state), "p1")
}

func TestUpdatePlayer_LeavesTeamAlone(t *testing.T) {
	s := storeWithPlayers(t, 1)
	require.NoError(t, s.JoinTeam("p0", 3))

	name, score := "Renamed", 42
	assert.True(t, s.UpdatePlayer("p0", PlayerPatch{Name: &name, Score: &score}))
	assert.False(t, s.UpdatePlayer("nobody", PlayerPatch{Name: &name}))

	p, ok := s.Player("p0")
	require.True(t, ok)
	assert.Equal(t, Player{ID: "p0", Name: "Renamed", TeamID: 3, Score: 42}, p)
}

func TestRandomizeTeams_Balanced(t *testing.T) {
	for players := 1; players <= 13; players++ {
		for teams := 1; teams <= TeamCapacity; teams++ {
			t.Run(fmt.Sprintf("%d players %d teams", players, teams), func(t *testing.T) {
				s := storeWithPlayers(t, players, seeded(uint64(players*10+teams)))
				s.SetTeamCount(teams)
				s.RandomizeTeams()

				state := s.State()
				sizes := make([]int, 0, teams)
				for i, team := range state.Teams {
					if i >= teams {
						assert.Empty(t, team.PlayerIDs)
						continue
					}
					sizes = append(sizes, len(team.PlayerIDs))
				}
				assert.LessOrEqual(t, slices.Max(sizes)-slices.Min(sizes), 1)

				total := 0
				for _, size := range sizes {
					total += size
				}
				assert.Equal(t, players, total)

				for _, p := range state.Players {
					assert.GreaterOrEqual(t, p.TeamID, 0)
					assert.Less(t, p.TeamID, teams)
					assert.Contains(t, state.Teams[p.TeamID].PlayerIDs, p.ID)
				}
			})
		}
	}
}

func TestRandomizeTeams_VariesPartitions(t *testing.T) {
	s := storeWithPlayers(t, 6, seeded(1))
	s.SetTeamCount(2)

	partitions := make(map[string]struct{})
	for range 20 {
		s.RandomizeTeams()

		state := s.State()
		first := slices.Clone(state.Teams[0].PlayerIDs)
		slices.Sort(first)
		partitions[strings.Join(first, ",")] = struct{}{}
	}

	assert.Greater(t, len(partitions), 1)
}

func TestSetTeamCount_Clamps(t *testing.T) {
	s := NewStore()

	for _, tc := range []struct{ in, want int }{
		{0, 1}, {-4, 1}, {1, 1}, {4, 4}, {6, 6}, {9, 6},
	} {
		s.SetTeamCount(tc.in)
		assert.Equal(t, tc.want, s.State().TeamCount, "input %d", tc.in)
	}
}

func TestSetWallType(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.SetWallType(WallPolice))
	assert.ErrorIs(t, s.SetWallType("rooftop"), ErrInvalidWall)
	assert.Equal(t, WallPolice, s.State().WallType)
}

func TestCalculateTerritories_SeventyThirty(t *testing.T) {
	s := NewStore()
	s.InitGrid()

	// 11469 and 4915 of 16384 cells.
	for i := range gridCells {
		x, y := i%GridResolution, i/GridResolution
		switch {
		case i < 11469:
			s.PaintCell(x, y, 0)
		case i < 11469+4915:
			s.PaintCell(x, y, 1)
		}
	}

	s.CalculateTerritories()
	state := s.State()

	assert.InDelta(t, 70.0, state.Teams[0].TerritoryPercent, 0.1)
	assert.InDelta(t, 30.0, state.Teams[1].TerritoryPercent, 0.1)
	for _, team := range state.Teams[2:] {
		assert.Zero(t, team.TerritoryPercent)
	}
}

func TestCalculateTerritories_WithoutGrid(t *testing.T) {
	s := NewStore()
	before := s.State()

	s.CalculateTerritories()

	assert.Empty(t, cmp.Diff(before, s.State()))
}

func TestPaintCell_WithoutGrid(t *testing.T) {
	s := NewStore()

	assert.False(t, s.PaintCell(3, 3, 0))
	_, ok := s.Owner(3, 3)
	assert.False(t, ok)
}

func TestSerializableSync_RoundTrip(t *testing.T) {
	host := storeWithPlayers(t, 5, seeded(3))
	host.SetHostID("p0")
	host.SetTeamCount(3)
	require.NoError(t, host.SetWallType(WallSubway))
	host.RandomizeTeams()
	host.SetPhase(PhasePlaying)
	host.UpdateTimeRemaining(87)
	host.InitGrid()
	host.PaintCell(0, 0, 2)
	host.CalculateTerritories()

	client := NewStore()
	client.InitGrid()
	client.PaintCell(5, 5, 1)

	snapshot := host.Serializable()
	assert.Nil(t, snapshot.Grid)

	client.Sync(snapshot)

	if diff := cmp.Diff(host.State(), client.State(), cmpopts.IgnoreFields(GameState{}, "Grid")); diff != "" {
		t.Errorf("replica differs from host (-host +client):\n%s", diff)
	}

	owner, ok := client.Owner(5, 5)
	require.True(t, ok)
	assert.Equal(t, byte(1), owner)

	owner, _ = client.Owner(0, 0)
	assert.Equal(t, Unowned, owner)
}

func TestSync_PadsTeams(t *testing.T) {
	s := NewStore()
	s.Sync(GameState{
		Phase: PhaseLobby,
		Teams: []Team{{ID: 1, PlayerIDs: []string{"x"}}},
	})

	state := s.State()
	require.Len(t, state.Teams, TeamCapacity)
	assert.Equal(t, "Cyan Squad", state.Teams[1].Name)
	assert.Equal(t, []string{"x"}, state.Teams[1].PlayerIDs)
	assert.NotNil(t, state.Players)
}

func TestState_IsDeepCopy(t *testing.T) {
	s := storeWithPlayers(t, 2)
	require.NoError(t, s.JoinTeam("p0", 0))
	s.InitGrid()

	state := s.State()
	state.Players[0].Name = "mutated"
	state.Teams[0].PlayerIDs[0] = "mutated"
	state.Grid.Set(1, 1, 4)

	fresh := s.State()
	assert.Equal(t, "Player 0", fresh.Players[0].Name)
	assert.Equal(t, "p0", fresh.Teams[0].PlayerIDs[0])
	owner, _ := s.Owner(1, 1)
	assert.Equal(t, Unowned, owner)
}

func TestResetToLobby_KeepsPlayers(t *testing.T) {
	s := storeWithPlayers(t, 4, seeded(5))
	s.SetHostID("p0")
	s.SetTeamCount(4)
	s.RandomizeTeams()
	s.SetPhase(PhaseLeaderboard)
	s.UpdateTimeRemaining(0)
	s.InitGrid()
	s.ApplySpray(SprayEvent{PlayerID: "p1", TeamID: 0, X: 0.5, Y: 0.5, CanType: CanFat, Timestamp: 1})

	s.ResetToLobby()
	state := s.State()

	assert.Equal(t, PhaseLobby, state.Phase)
	assert.Equal(t, GameDuration, state.TimeRemaining)
	assert.Equal(t, 4, state.TeamCount)
	assert.Equal(t, "p0", state.HostID)
	assert.Nil(t, state.Grid)
	assert.Len(t, state.Players, 4)
	assert.Empty(t, memberships(state))
	for _, p := range state.Players {
		assert.Equal(t, NoTeam, p.TeamID)
	}
	assert.Empty(t, s.SprayHistory())
}

func TestResetGame(t *testing.T) {
	s := storeWithPlayers(t, 3)
	s.SetPhase(PhasePlaying)

	s.ResetGame()

	assert.Empty(t, cmp.Diff(NewGameState(), s.State()))
}

func TestLeaderboard_OrderAndTies(t *testing.T) {
	s := storeWithPlayers(t, 4)
	require.NoError(t, s.JoinTeam("p0", 0))
	require.NoError(t, s.JoinTeam("p1", 2))
	require.NoError(t, s.JoinTeam("p2", 4))
	require.NoError(t, s.JoinTeam("p3", 5))

	s.InitGrid()
	for x := range 10 {
		s.PaintCell(x, 0, 4)
		s.PaintCell(x, 1, 0)
		s.PaintCell(x, 2, 2)
	}
	s.CalculateTerritories()

	var ids []int
	for _, team := range s.Leaderboard() {
		ids = append(ids, team.ID)
	}

	// 0, 2 and 4 tie; 5 has members but no paint; 1 and 3 are empty.
	assert.Equal(t, []int{0, 2, 4, 5}, ids)
}
