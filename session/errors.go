/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"strings"

	"github.com/Seednode/graffiti/games/graffiti"
)

var (
	// ErrTransport wraps any failure of the underlying transport. It is
	// never fatal on its own.
	ErrTransport = errors.New("connection error")

	ErrRoomNotFound     = errors.New("room not found")
	ErrHostDisconnected = errors.New("host disconnected")
	ErrNotHost          = errors.New("only the host can do that")
	ErrWrongPhase       = errors.New("not possible in the current phase")
	ErrNoCan            = errors.New("no paint left, answer a question first")
	ErrNoTeam           = errors.New("not on a team")
	ErrInvalidPoint     = errors.New("point is off the wall")
	ErrSessionClosed    = errors.New("session closed")

	ErrAlreadyAnswered = graffiti.ErrAlreadyAnswered
	ErrOutOfQuestions  = graffiti.ErrOutOfQuestions
)

// UserMessage turns any error returned by this package into banner text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found. Check the code and try again."
	case errors.Is(err, ErrHostDisconnected):
		return "The host left the game."
	case errors.Is(err, ErrSessionClosed):
		return "You have left the game."
	case errors.Is(err, ErrNotHost):
		return "Only the host can do that."
	case errors.Is(err, ErrWrongPhase):
		return "You can't do that right now."
	case errors.Is(err, ErrNoCan):
		return "Your can is empty. Answer a question to refill it."
	case errors.Is(err, ErrNoTeam):
		return "You're not on a team yet."
	case errors.Is(err, ErrInvalidPoint):
		return "That spot is off the wall."
	case errors.Is(err, ErrAlreadyAnswered):
		return "You already answered this one."
	case errors.Is(err, ErrOutOfQuestions):
		return "No more questions. Keep an eye on the wall!"
	case errors.Is(err, ErrTransport):
		return "Connection error: " + strings.TrimPrefix(err.Error(), ErrTransport.Error()+": ")
	}
	return "Something went wrong: " + err.Error()
}
