/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package transport moves opaque payloads between named endpoints over
// reliable, ordered, point-to-point data channels.
//
// An Endpoint is registered under an identifier and may dial any other
// identifier. Everything that happens to its channels (inbound channels,
// opens, payloads, closes and errors) arrives on a single event stream in
// per-channel order.
package transport

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrIDTaken         = errors.New("id is already taken")
	ErrNotOpen         = errors.New("connection is not open")
	ErrClosed          = errors.New("endpoint closed")
)

type State int

const (
	StateOpening State = iota
	StateOpen
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}

type EventKind int

const (
	// EventConnection announces an inbound channel. It is already open.
	EventConnection EventKind = iota
	EventOpen
	EventData
	EventClose
	// EventError carries Err. Conn is nil when the endpoint itself failed.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnection:
		return "connection"
	case EventOpen:
		return "open"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Conn Conn
	Data []byte
	Err  error
}

// Network creates endpoints.
type Network interface {
	Open(ctx context.Context, id string) (Endpoint, error)
}

type Endpoint interface {
	ID() string

	// Connect starts dialing remote and returns immediately. EventOpen or an
	// EventError wrapping ErrPeerUnavailable follows on Events.
	Connect(remote string) (Conn, error)

	// Events never blocks the side producing them. It is closed by Close.
	Events() <-chan Event

	Close() error
}

type Conn interface {
	// ID names the channel. Both ends see the same value.
	ID() string

	// Peer is the identifier of the endpoint on the other end.
	Peer() string

	State() State

	Send(data []byte) error

	// Close tears the channel down. The other end receives EventClose; this
	// end does not.
	Close() error
}

// connState guards a channel's lifecycle: opening, open, then closed, with
// error reachable from anywhere.
type connState struct {
	mu    sync.Mutex
	state State
}

func (c *connState) get() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// open moves opening to open and reports whether it did.
func (c *connState) open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpening {
		return false
	}
	c.state = StateOpen
	return true
}

// end moves the channel to a terminal state and reports whether it was
// still live.
func (c *connState) end(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateError {
		return false
	}
	c.state = s
	return true
}
