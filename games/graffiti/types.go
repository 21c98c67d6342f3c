/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import "errors"

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrInvalidTeam     = errors.New("invalid team")
	ErrInvalidWall     = errors.New("invalid wall type")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrOutOfQuestions  = errors.New("no questions left")
	ErrInvalidQuestion = errors.New("invalid question")
)

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhasePlaying     Phase = "playing"
	PhaseLeaderboard Phase = "leaderboard"
)

type WallType string

const (
	WallSchool  WallType = "school"
	WallSubway  WallType = "subway"
	WallPolice  WallType = "police"
	WallParking WallType = "parking"
)

// Walls lists every wall in the order the lobby offers them.
var Walls = []WallType{WallSchool, WallSubway, WallPolice, WallParking}

func (w WallType) Valid() bool {
	switch w {
	case WallSchool, WallSubway, WallPolice, WallParking:
		return true
	}
	return false
}

type CanType string

const (
	CanNone   CanType = ""
	CanFat    CanType = "fat"
	CanSkinny CanType = "skinny"
)

const (
	// GridResolution is the side length of the square ownership grid.
	GridResolution = 128

	// Unowned marks a grid cell no team has painted.
	Unowned byte = 255

	// TeamCapacity is the fixed number of team identities.
	TeamCapacity = 6

	// NoTeam is the team id of a player who has not been assigned.
	NoTeam = -1

	// GameDuration is the length of a round in seconds.
	GameDuration = 120

	DefaultTeamCount = 2

	FatRadiusMultiplier    = 3
	SkinnyRadiusMultiplier = 1

	// FullPressure is the pressure of a freshly earned can.
	FullPressure = 100.0

	// DrainRate is the pressure one spray action consumes.
	DrainRate = 1.1
)

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID int    `json:"teamId"`
	Score  int    `json:"score"`
	IsHost bool   `json:"isHost"`
}

// PlayerPatch carries the fields UpdatePlayer may change. Team membership
// only moves through JoinTeam and RandomizeTeams.
type PlayerPatch struct {
	Name  *string
	Score *int
}

type Team struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Color            string   `json:"color"`
	NeonColor        string   `json:"neonColor"`
	PlayerIDs        []string `json:"playerIds"`
	TerritoryPercent float64  `json:"territoryPercent"`
}

var teamIdentities = [TeamCapacity]Team{
	{ID: 0, Name: "Crimson Crew", Color: "#dc2626", NeonColor: "#ff4444"},
	{ID: 1, Name: "Cyan Squad", Color: "#0891b2", NeonColor: "#00ffff"},
	{ID: 2, Name: "Lime Gang", Color: "#65a30d", NeonColor: "#aaff00"},
	{ID: 3, Name: "Violet Vandals", Color: "#7c3aed", NeonColor: "#bf00ff"},
	{ID: 4, Name: "Amber Alliance", Color: "#d97706", NeonColor: "#ffaa00"},
	{ID: 5, Name: "Pink Panthers", Color: "#db2777", NeonColor: "#ff44aa"},
}

// DefaultTeams returns the six team identities with no members and no
// territory.
func DefaultTeams() []Team {
	teams := make([]Team, TeamCapacity)
	for i, t := range teamIdentities {
		t.PlayerIDs = []string{}
		teams[i] = t
	}
	return teams
}

// TeamIdentity returns the immutable name and colours of team id.
func TeamIdentity(id int) (Team, bool) {
	if id < 0 || id >= TeamCapacity {
		return Team{}, false
	}
	t := teamIdentities[id]
	t.PlayerIDs = []string{}
	return t, true
}

type GameState struct {
	Phase         Phase    `json:"phase"`
	WallType      WallType `json:"wallType"`
	TimeRemaining int      `json:"timeRemaining"`
	Players       []Player `json:"players"`
	Teams         []Team   `json:"teams"`
	HostID        string   `json:"hostId"`
	Grid          *Grid    `json:"grid"`
	TeamCount     int      `json:"teamCount"`
}

func NewGameState() GameState {
	return GameState{
		Phase:         PhaseLobby,
		WallType:      WallSchool,
		TimeRemaining: GameDuration,
		Players:       []Player{},
		Teams:         DefaultTeams(),
		TeamCount:     DefaultTeamCount,
	}
}

// Clone returns a deep copy, grid included.
func (s GameState) Clone() GameState {
	out := s

	out.Players = make([]Player, len(s.Players))
	copy(out.Players, s.Players)

	out.Teams = make([]Team, len(s.Teams))
	for i, t := range s.Teams {
		t.PlayerIDs = append([]string{}, t.PlayerIDs...)
		out.Teams[i] = t
	}

	if s.Grid != nil {
		out.Grid = s.Grid.Clone()
	}

	return out
}

func (s GameState) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// SprayEvent is one spray action, as sent between peers. The pair of
// PlayerID and Timestamp identifies it.
type SprayEvent struct {
	PlayerID  string  `json:"playerId"`
	TeamID    int     `json:"teamId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	CanType   CanType `json:"canType"`
	Timestamp int64   `json:"timestamp"`
}

// Cell addresses one square of the ownership grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}
