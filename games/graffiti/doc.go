/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package graffiti holds the game rules for the spray-paint trivia game.
//
// Players answer quiz questions to earn a can of paint, then spray a shared
// wall to claim territory for their team. When the timer runs out the team
// covering the most of the wall wins.
//
// How a round plays:
// - The host picks a wall and a team count (1-6) in the lobby
// - Starting the game shuffles every player onto a team, round-robin
// - A correct answer earns a fat cap, a wrong one a skinny cap
// - Each spray drains pressure; an empty can means answering again
// - Every peer paints its own 128x128 ownership grid from relayed sprays
// - At zero seconds each peer scans its grid to rank the teams
//
// Nothing in this package is safe for concurrent use. A Store and its
// LocalPlayer are owned by exactly one goroutine (the session loop).
package graffiti
