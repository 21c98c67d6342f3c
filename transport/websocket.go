/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketNetwork reaches other endpoints through a Broker.
type WebSocketNetwork struct {
	base   string
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewWebSocketNetwork takes the broker's base URL, for example
// ws://localhost:8080 or https://party.example.com/graffiti. HTTP schemes
// are mapped to their websocket equivalents.
func NewWebSocketNetwork(base string, log *zap.Logger) (*WebSocketNetwork, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &WebSocketNetwork{
		base:   strings.TrimSuffix(u.String(), "/"),
		dialer: &websocket.Dialer{HandshakeTimeout: writeWait},
		log:    log,
	}, nil
}

func (n *WebSocketNetwork) Open(ctx context.Context, id string) (Endpoint, error) {
	ws, _, err := n.dialer.DialContext(ctx, n.base+"/peer/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	} else {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	}

	var hello frame
	if err := ws.ReadJSON(&hello); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("register %s: %w", id, err)
	}

	switch hello.Type {
	case frameHello:
	case frameError:
		_ = ws.Close()
		return nil, hello.err()
	default:
		_ = ws.Close()
		return nil, fmt.Errorf("register %s: unexpected %q frame", id, hello.Type)
	}

	// Liveness from here on is the write side's pings.
	_ = ws.SetReadDeadline(time.Time{})
	ws.SetReadLimit(maxFrameSize)

	e := &wsEndpoint{
		id:       id,
		ws:       ws,
		log:      n.log.With(zap.String("endpoint", id)),
		inbox:    newInbox(),
		send:     make(chan frame, sendQueueDepth),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		conns:    make(map[string]*wsConn),
	}

	go e.writeLoop()
	go e.readLoop()

	return e, nil
}

type wsEndpoint struct {
	id    string
	ws    *websocket.Conn
	log   *zap.Logger
	inbox *inbox
	send  chan frame
	done  chan struct{}
	once  sync.Once

	finished chan struct{}

	mu      sync.Mutex
	conns   map[string]*wsConn
	closing bool
}

func (e *wsEndpoint) ID() string {
	return e.id
}

func (e *wsEndpoint) Events() <-chan Event {
	return e.inbox.out
}

func (e *wsEndpoint) enqueue(f frame) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	select {
	case e.send <- f:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

func (e *wsEndpoint) conn(id string) *wsConn {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.conns[id]
}

func (e *wsEndpoint) add(c *wsConn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conns[c.id] = c
}

func (e *wsEndpoint) drop(id string) *wsConn {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.conns[id]
	delete(e.conns, id)
	return c
}

func (e *wsEndpoint) Connect(remote string) (Conn, error) {
	c := &wsConn{id: uuid.NewString(), ep: e, peer: remote}
	e.add(c)

	if err := e.enqueue(frame{Type: frameConnect, Conn: c.id, Peer: remote}); err != nil {
		e.drop(c.id)
		return nil, err
	}

	return c, nil
}

func (e *wsEndpoint) readLoop() {
	for {
		var f frame
		if err := e.ws.ReadJSON(&f); err != nil {
			e.lost(err)
			return
		}

		switch f.Type {
		case frameConnect:
			c := &wsConn{id: f.Conn, ep: e, peer: f.Peer}
			c.state.state = StateOpen
			e.add(c)
			e.inbox.push(Event{Kind: EventConnection, Conn: c})
		case frameOpen:
			if c := e.conn(f.Conn); c != nil && c.state.open() {
				e.inbox.push(Event{Kind: EventOpen, Conn: c})
			}
		case frameData:
			if c := e.conn(f.Conn); c != nil && c.state.get() == StateOpen {
				e.inbox.push(Event{Kind: EventData, Conn: c, Data: f.Payload})
			}
		case frameClose:
			if c := e.drop(f.Conn); c != nil && c.state.end(StateClosed) {
				e.inbox.push(Event{Kind: EventClose, Conn: c})
			}
		case frameError:
			if c := e.drop(f.Conn); c != nil && c.state.end(StateError) {
				e.inbox.push(Event{Kind: EventError, Conn: c, Err: f.err()})
			}
		default:
			e.log.Debug("unexpected frame", zap.String("type", string(f.Type)))
		}
	}
}

// lost handles the broker socket going away underneath the endpoint. Every
// channel closes and an endpoint-level error follows.
func (e *wsEndpoint) lost(err error) {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return
	}
	conns := make([]*wsConn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	clear(e.conns)
	e.mu.Unlock()

	for _, c := range conns {
		if c.state.end(StateClosed) {
			e.inbox.push(Event{Kind: EventClose, Conn: c})
		}
	}

	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		e.log.Debug("broker connection lost", zap.Error(err))
	}
	e.inbox.push(Event{Kind: EventError, Err: fmt.Errorf("%w: %w", ErrClosed, err)})

	e.stop()
}

func (e *wsEndpoint) stop() {
	e.once.Do(func() {
		close(e.done)
	})
}

func (e *wsEndpoint) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = e.ws.Close()
		close(e.finished)
	}()

	for {
		select {
		case f := <-e.send:
			_ = e.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.ws.WriteJSON(f); err != nil {
				e.stop()
				return
			}
		case <-ticker.C:
			_ = e.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				e.stop()
				return
			}
		case <-e.done:
			e.flush()
			_ = e.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = e.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes frames still queued when the endpoint stops, so a channel
// closed right after a send keeps its last messages.
func (e *wsEndpoint) flush() {
	for {
		select {
		case f := <-e.send:
			_ = e.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.ws.WriteJSON(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close leaves the broker. The broker closes every channel on the far side.
func (e *wsEndpoint) Close() error {
	e.mu.Lock()
	e.closing = true
	for id, c := range e.conns {
		c.state.end(StateClosed)
		delete(e.conns, id)
	}
	e.mu.Unlock()

	e.stop()
	<-e.finished

	e.inbox.close()

	return nil
}

type wsConn struct {
	id    string
	ep    *wsEndpoint
	peer  string
	state connState
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Peer() string {
	return c.peer
}

func (c *wsConn) State() State {
	return c.state.get()
}

func (c *wsConn) Send(data []byte) error {
	if c.state.get() != StateOpen {
		return ErrNotOpen
	}
	return c.ep.enqueue(frame{Type: frameData, Conn: c.id, Payload: data})
}

func (c *wsConn) Close() error {
	if !c.state.end(StateClosed) {
		return nil
	}
	c.ep.drop(c.id)

	err := c.ep.enqueue(frame{Type: frameClose, Conn: c.id})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
