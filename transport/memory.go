/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Switchboard is an in-process Network. Channels between its endpoints
// behave like broker-backed ones without touching a socket.
type Switchboard struct {
	mu        sync.Mutex
	endpoints map[string]*memEndpoint
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{endpoints: make(map[string]*memEndpoint)}
}

func (s *Switchboard) Open(ctx context.Context, id string) (Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrIDTaken, id)
	}

	ep := &memEndpoint{
		id:    id,
		board: s,
		inbox: newInbox(),
		conns: make(map[string]*memConn),
	}
	s.endpoints[id] = ep

	return ep, nil
}

// Exists reports whether an endpoint is registered under id.
func (s *Switchboard) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.endpoints[id]
	return ok
}

func (s *Switchboard) lookup(id string) *memEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.endpoints[id]
}

func (s *Switchboard) remove(ep *memEndpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endpoints[ep.id] == ep {
		delete(s.endpoints, ep.id)
	}
}

// dial pairs local with a fresh inbound channel on remote.
func (s *Switchboard) dial(local *memConn, remote string) {
	target := s.lookup(remote)

	var inbound *memConn
	if target != nil {
		inbound = &memConn{id: local.id, ep: target, peer: local.ep.id, other: local}
		inbound.state.state = StateOpen
		if !target.add(inbound) {
			inbound = nil
		}
	}

	if inbound == nil {
		if local.state.end(StateError) {
			local.ep.drop(local)
			local.ep.inbox.push(Event{Kind: EventError, Conn: local, Err: fmt.Errorf("%w: %s", ErrPeerUnavailable, remote)})
		}
		return
	}

	// local.mu is held until local is open, so nothing inbound sends can
	// reach local ahead of its EventOpen.
	local.mu.Lock()
	defer local.mu.Unlock()

	local.other = inbound

	target.inbox.push(Event{Kind: EventConnection, Conn: inbound})

	if local.state.open() {
		local.ep.inbox.push(Event{Kind: EventOpen, Conn: local})
		return
	}

	// local was closed while dialing.
	if inbound.state.end(StateClosed) {
		target.drop(inbound)
		target.inbox.push(Event{Kind: EventClose, Conn: inbound})
	}
}

type memEndpoint struct {
	id    string
	board *Switchboard
	inbox *inbox

	mu     sync.Mutex
	conns  map[string]*memConn
	closed bool
}

func (e *memEndpoint) ID() string {
	return e.id
}

func (e *memEndpoint) Events() <-chan Event {
	return e.inbox.out
}

func (e *memEndpoint) add(c *memConn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.conns[c.id] = c
	return true
}

func (e *memEndpoint) drop(c *memConn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conns[c.id] == c {
		delete(e.conns, c.id)
	}
}

func (e *memEndpoint) Connect(remote string) (Conn, error) {
	c := &memConn{id: uuid.NewString(), ep: e, peer: remote}

	if !e.add(c) {
		return nil, ErrClosed
	}

	go e.board.dial(c, remote)

	return c, nil
}

func (e *memEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conns := make([]*memConn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	clear(e.conns)
	e.mu.Unlock()

	e.board.remove(e)

	for _, c := range conns {
		_ = c.Close()
	}

	e.inbox.close()

	return nil
}

type memConn struct {
	id    string
	ep    *memEndpoint
	peer  string
	state connState

	mu    sync.Mutex
	other *memConn
}

func (c *memConn) ID() string {
	return c.id
}

func (c *memConn) Peer() string {
	return c.peer
}

func (c *memConn) State() State {
	return c.state.get()
}

func (c *memConn) Send(data []byte) error {
	if c.state.get() != StateOpen {
		return ErrNotOpen
	}

	c.mu.Lock()
	other := c.other
	c.mu.Unlock()

	if other == nil {
		return ErrNotOpen
	}

	other.mu.Lock()
	defer other.mu.Unlock()

	if other.state.get() != StateOpen {
		return ErrNotOpen
	}

	payload := append([]byte(nil), data...)
	other.ep.inbox.push(Event{Kind: EventData, Conn: other, Data: payload})

	return nil
}

func (c *memConn) Close() error {
	if !c.state.end(StateClosed) {
		return nil
	}
	c.ep.drop(c)

	c.mu.Lock()
	other := c.other
	c.mu.Unlock()

	if other != nil && other.state.end(StateClosed) {
		other.ep.drop(other)
		other.ep.inbox.push(Event{Kind: EventClose, Conn: other})
	}

	return nil
}
