/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs one peer of a game room.
//
// A room has exactly one host, whose endpoint identifier is the room code,
// and any number of clients that each hold a single channel to the host.
// The host owns the game state and relays sprays between clients; clients
// keep a replica that the host overwrites.
//
// Each Session is driven by one goroutine. It alone touches the store, the
// grid, the local player and the channel set; exported methods post work to
// it and wait for the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/protocol"
	"github.com/Seednode/graffiti/transport"
)

type Role int

const (
	RoleHost Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "client"
}

type Options struct {
	// PlayerName defaults to "Host" for hosts and "Player XXXX" for clients.
	PlayerName string

	Logger *zap.Logger

	// TickInterval is the length of one countdown second.
	TickInterval time.Duration

	// StartDelay separates starting the game locally from announcing it.
	StartDelay time.Duration

	// GameDuration is the countdown length in ticks.
	GameDuration int

	Questions []graffiti.Question

	Rand *rand.Rand

	// CodeGenerator picks room codes for Create.
	CodeGenerator func() (string, error)

	// UpdateBuffer is the capacity of the Updates channel.
	UpdateBuffer int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.StartDelay <= 0 {
		o.StartDelay = 50 * time.Millisecond
	}
	if o.GameDuration <= 0 {
		o.GameDuration = graffiti.GameDuration
	}
	if len(o.Questions) == 0 {
		o.Questions = graffiti.DefaultQuestions()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.CodeGenerator == nil {
		o.CodeGenerator = NewRoomCode
	}
	if o.UpdateBuffer <= 0 {
		o.UpdateBuffer = 256
	}
	return o
}

type Session struct {
	role Role
	code string
	self string
	opts Options
	log  *zap.Logger
	ep   transport.Endpoint

	// Owned by the run goroutine.
	store     *graffiti.Store
	local     graffiti.LocalPlayer
	conns     map[string]transport.Conn
	hostConn  transport.Conn
	startC    <-chan time.Time
	startT    *time.Timer
	ticker    *time.Ticker
	tickC     <-chan time.Time
	remaining int
	lastSpray int64
	fatal     error

	calls   chan func()
	updates chan Update
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newSession(role Role, code, self string, ep transport.Endpoint, opts Options) *Session {
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		role:    role,
		code:    code,
		self:    self,
		opts:    opts,
		log:     opts.Logger.With(zap.String("room", code), zap.Stringer("role", role)),
		ep:      ep,
		store:   graffiti.NewStore(graffiti.WithRand(opts.Rand)),
		conns:   make(map[string]transport.Conn),
		calls:   make(chan func()),
		updates: make(chan Update, opts.UpdateBuffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Create opens a new room and makes the caller its host and first player.
func Create(ctx context.Context, net transport.Network, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	for range maxCodeAttempts {
		code, err := opts.CodeGenerator()
		if err != nil {
			return nil, fmt.Errorf("%w: room code: %w", ErrTransport, err)
		}
		code = NormalizeCode(code)

		ep, err := net.Open(ctx, code)
		switch {
		case errors.Is(err, transport.ErrIDTaken):
			opts.Logger.Debug("room code taken", zap.String("room", code))
			continue
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		s := newSession(RoleHost, code, code, ep, opts)

		name := opts.PlayerName
		if name == "" {
			name = "Host"
		}
		s.store.SetHostID(code)
		s.store.AddPlayer(graffiti.Player{ID: code, Name: name, TeamID: graffiti.NoTeam, IsHost: true})

		s.log.Info("room created")

		go s.run()

		return s, nil
	}

	return nil, fmt.Errorf("%w: no free room code after %d attempts", ErrTransport, maxCodeAttempts)
}

// Join connects to the host of room code. It returns once the channel to the
// host is open.
func Join(ctx context.Context, net transport.Network, code string, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, code)
	}

	self := uuid.NewString()

	ep, err := net.Open(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	conn, err := awaitOpen(ctx, ep, code)
	if err != nil {
		_ = ep.Close()
		return nil, err
	}

	s := newSession(RoleClient, code, self, ep, opts)
	s.hostConn = conn
	s.store.SetHostID(code)

	name := opts.PlayerName
	if name == "" {
		name = "Player " + self[len(self)-4:]
	}

	s.send(conn, protocol.PlayerJoined{Player: graffiti.Player{ID: self, Name: name, TeamID: graffiti.NoTeam}})
	s.send(conn, protocol.RequestState{})

	s.log.Info("joined room", zap.String("id", self))

	go s.run()

	return s, nil
}

func awaitOpen(ctx context.Context, ep transport.Endpoint, code string) (transport.Conn, error) {
	conn, err := ep.Connect(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	for {
		select {
		case ev, ok := <-ep.Events():
			if !ok {
				return nil, fmt.Errorf("%w: %w", ErrTransport, transport.ErrClosed)
			}
			if ev.Conn != conn {
				if ev.Kind == transport.EventConnection {
					_ = ev.Conn.Close()
				}
				if ev.Kind == transport.EventError && ev.Conn == nil {
					return nil, fmt.Errorf("%w: %w", ErrTransport, ev.Err)
				}
				continue
			}

			switch ev.Kind {
			case transport.EventOpen:
				return conn, nil
			case transport.EventError:
				if errors.Is(ev.Err, transport.ErrPeerUnavailable) {
					return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
				}
				return nil, fmt.Errorf("%w: %w", ErrTransport, ev.Err)
			case transport.EventClose:
				return nil, fmt.Errorf("%w: %w", ErrTransport, transport.ErrClosed)
			}
		case <-ctx.Done():
			_ = conn.Close()
			return nil, ctx.Err()
		}
	}
}

func (s *Session) Role() Role {
	return s.role
}

// Code is the room code, which is also the host's identifier.
func (s *Session) Code() string {
	return s.code
}

// SelfID is this peer's player id.
func (s *Session) SelfID() string {
	return s.self
}

// Updates delivers change notifications. Updates are dropped when the
// buffer is full; View always has the latest state. The channel is closed
// by Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case ev, ok := <-s.ep.Events():
			if !ok {
				s.fail(fmt.Errorf("%w: %w", ErrTransport, transport.ErrClosed))
				return
			}
			s.handleEvent(ev)
		case fn := <-s.calls:
			fn()
		case <-s.startC:
			s.startC = nil
			s.startT = nil
			s.beginCountdown()
		case <-s.tickC:
			s.tick()
		case <-s.ctx.Done():
			s.stopTimers()
			return
		}
	}
}

// do runs fn on the session goroutine and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)

	select {
	case s.calls <- func() { errc <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) publish(u Update) {
	select {
	case s.updates <- u:
	default:
		s.log.Debug("update dropped", zap.Stringer("kind", u.Kind))
	}
}

func (s *Session) publishState() {
	s.publish(Update{Kind: UpdateState, Phase: s.store.Phase()})
}

// fail makes err terminal for the session.
func (s *Session) fail(err error) {
	if s.fatal != nil {
		return
	}
	s.fatal = err
	s.stopTimers()

	kind := UpdateError
	if errors.Is(err, ErrHostDisconnected) {
		kind = UpdateHostLost
	}

	s.log.Warn("session failed", zap.Error(err))
	s.publish(Update{Kind: kind, Err: err})
}

func (s *Session) stopTimers() {
	if s.startT != nil {
		s.startT.Stop()
		s.startT = nil
	}
	s.startC = nil

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.tickC = nil
}

// Close stops the countdown, closes every channel and leaves the network.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done

		var err error
		for _, c := range s.conns {
			err = multierr.Append(err, c.Close())
		}
		if s.hostConn != nil {
			err = multierr.Append(err, s.hostConn.Close())
		}
		err = multierr.Append(err, s.ep.Close())

		close(s.updates)

		s.closeErr = err
		s.log.Info("session closed")
	})

	return s.closeErr
}
