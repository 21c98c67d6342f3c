/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Broker is the signalling and relay server endpoints register with. Each
// endpoint holds one websocket; the broker pipes channel frames between
// pairs of registered identifiers and tears a pair down when either side
// goes away.
type Broker struct {
	log   *zap.Logger
	limit rate.Limit
	burst int

	mu    sync.Mutex
	peers map[string]*brokerPeer
	links map[string]link
}

type BrokerOption func(*Broker)

func WithLogger(l *zap.Logger) BrokerOption {
	return func(b *Broker) {
		b.log = l
	}
}

// WithFrameRate caps how fast one endpoint may push frames. Frames over the
// limit wait instead of being dropped.
func WithFrameRate(perSecond float64, burst int) BrokerOption {
	return func(b *Broker) {
		b.limit = rate.Limit(perSecond)
		b.burst = max(1, burst)
	}
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		log:   zap.NewNop(),
		limit: rate.Inf,
		peers: make(map[string]*brokerPeer),
		links: make(map[string]link),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// link is one channel between endpoints a (the dialer) and b.
type link struct {
	a, b string
}

func (l link) other(id string) (string, bool) {
	switch id {
	case l.a:
		return l.b, true
	case l.b:
		return l.a, true
	}
	return "", false
}

type brokerPeer struct {
	id      string
	ws      *websocket.Conn
	send    chan frame
	done    chan struct{}
	limiter *rate.Limiter
	once    sync.Once
}

// enqueue waits for room in the peer's send queue, so a slow reader slows
// its senders down rather than losing frames.
func (p *brokerPeer) enqueue(f frame) bool {
	select {
	case p.send <- f:
		return true
	case <-p.done:
		return false
	}
}

func (p *brokerPeer) stop() {
	p.once.Do(func() {
		close(p.done)
	})
}

// Exists reports whether an endpoint is registered under id.
func (b *Broker) Exists(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.peers[id]
	return ok
}

// Endpoints returns how many endpoints are registered.
func (b *Broker) Endpoints() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.peers)
}

func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Serve upgrades the request and registers the websocket as endpoint id. It
// returns once the endpoint disconnects.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request, id string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("upgrade failed", zap.String("id", id), zap.Error(err))
		return
	}

	if !validID(id) {
		reject(ws, codeInvalidID, id)
		return
	}

	p := &brokerPeer{
		id:      id,
		ws:      ws,
		send:    make(chan frame, sendQueueDepth),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(b.limit, b.burst),
	}

	if !b.register(p) {
		b.log.Debug("id taken", zap.String("id", id))
		reject(ws, codeUnavailableID, id)
		return
	}

	b.log.Debug("endpoint registered", zap.String("id", id), zap.String("remote", r.RemoteAddr))

	go p.writePump()
	p.enqueue(frame{Type: frameHello, Peer: id})

	b.readPump(r.Context(), p)
}

func reject(ws *websocket.Conn, code, id string) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteJSON(frame{Type: frameError, Peer: id, Error: code})
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
	_ = ws.Close()
}

func (b *Broker) register(p *brokerPeer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.peers[p.id]; ok {
		return false
	}
	b.peers[p.id] = p
	return true
}

// unregister removes p and closes every channel it was part of.
func (b *Broker) unregister(p *brokerPeer) {
	type notice struct {
		to   *brokerPeer
		conn string
	}
	var notices []notice

	b.mu.Lock()
	if b.peers[p.id] == p {
		delete(b.peers, p.id)
	}
	for conn, l := range b.links {
		other, ok := l.other(p.id)
		if !ok {
			continue
		}
		delete(b.links, conn)
		if to, ok := b.peers[other]; ok {
			notices = append(notices, notice{to, conn})
		}
	}
	b.mu.Unlock()

	p.stop()

	for _, n := range notices {
		n.to.enqueue(frame{Type: frameClose, Conn: n.conn, Peer: p.id})
	}

	b.log.Debug("endpoint unregistered", zap.String("id", p.id), zap.Int("links", len(notices)))
}

func (b *Broker) readPump(ctx context.Context, p *brokerPeer) {
	defer func() {
		b.unregister(p)
		_ = p.ws.Close()
	}()

	p.ws.SetReadLimit(maxFrameSize)
	_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f frame
		if err := p.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Debug("read failed", zap.String("id", p.id), zap.Error(err))
			}
			return
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		b.route(p, f)
	}
}

func (b *Broker) route(from *brokerPeer, f frame) {
	switch f.Type {
	case frameConnect:
		b.connect(from, f)
	case frameData, frameClose:
		b.mu.Lock()
		l, ok := b.links[f.Conn]
		var to *brokerPeer
		if ok {
			if other, member := l.other(from.id); member {
				to = b.peers[other]
			}
			if to != nil && f.Type == frameClose {
				delete(b.links, f.Conn)
			}
		}
		b.mu.Unlock()

		if to == nil {
			if f.Type == frameData && f.Conn != "" {
				from.enqueue(frame{Type: frameClose, Conn: f.Conn})
			}
			return
		}

		to.enqueue(frame{Type: f.Type, Conn: f.Conn, Peer: from.id, Payload: f.Payload})
	default:
		b.log.Debug("unexpected frame", zap.String("id", from.id), zap.String("type", string(f.Type)))
	}
}

// connect opens channel f.Conn from one endpoint to f.Peer. The target learns
// about it before the dialer sees open, so the target can never receive data
// for a channel it has not been told about.
func (b *Broker) connect(from *brokerPeer, f frame) {
	b.mu.Lock()
	to, ok := b.peers[f.Peer]
	_, dup := b.links[f.Conn]
	if ok && !dup && f.Conn != "" && to != from {
		b.links[f.Conn] = link{a: from.id, b: to.id}
	}
	b.mu.Unlock()

	if !ok || dup || f.Conn == "" || to == from {
		from.enqueue(frame{Type: frameError, Conn: f.Conn, Peer: f.Peer, Error: codePeerUnavailable})
		return
	}

	to.enqueue(frame{Type: frameConnect, Conn: f.Conn, Peer: from.id})
	from.enqueue(frame{Type: frameOpen, Conn: f.Conn, Peer: to.id})

	b.log.Debug("channel opened", zap.String("from", from.id), zap.String("to", to.id), zap.String("conn", f.Conn))
}

func (p *brokerPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.ws.Close()
	}()

	for {
		select {
		case f := <-p.send:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteJSON(f); err != nil {
				p.stop()
				return
			}
		case <-ticker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.stop()
				return
			}
		case <-p.done:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
