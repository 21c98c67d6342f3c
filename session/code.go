/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"crypto/rand"
	"io"
	"strings"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6

	// maxCodeAttempts bounds how many fresh codes Create tries when the
	// broker reports a collision.
	maxCodeAttempts = 8

	// codeByteLimit is the largest multiple of the alphabet size that fits
	// in a byte. Bytes at or above it are redrawn so every symbol is equally
	// likely.
	codeByteLimit = 256 - 256%len(codeAlphabet)
)

// NewRoomCode returns a random six-character room code. The code doubles as
// the host's endpoint identifier.
func NewRoomCode() (string, error) {
	return roomCode(rand.Reader)
}

func roomCode(r io.Reader) (string, error) {
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)

	for len(out) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= codeByteLimit || len(out) == CodeLength {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}

	return string(out), nil
}

// NormalizeCode makes a typed-in room code match the host's identifier.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code, once normalized, could name a room.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}
