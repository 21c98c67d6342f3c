/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/protocol"
	"github.com/Seednode/graffiti/transport"
)

// hostWithClients builds a host whose loop is not running, so handlers can be
// driven directly.
func hostWithClients(t *testing.T, peers ...string) (*Session, map[string]*MockConn) {
	t.Helper()

	s := newSession(RoleHost, "ABC123", "ABC123", nil, Options{})
	s.store.SetHostID("ABC123")
	s.store.AddPlayer(graffiti.Player{ID: "ABC123", Name: "Host", TeamID: graffiti.NoTeam, IsHost: true})

	conns := make(map[string]*MockConn, len(peers))
	for _, p := range peers {
		c := newMockConn(p)
		conns[p] = c
		s.handleEvent(transport.Event{Kind: transport.EventConnection, Conn: c})
	}
	require.Len(t, s.conns, len(peers))

	return s, conns
}

// seat adds peer to the host's roster on team.
func seat(t *testing.T, s *Session, peer string, team int) {
	t.Helper()

	s.store.AddPlayer(graffiti.Player{ID: peer, Name: peer, TeamID: graffiti.NoTeam})
	require.NoError(t, s.store.JoinTeam(peer, team))
}

func encode(t *testing.T, m protocol.Message) []byte {
	t.Helper()

	b, err := protocol.Encode(m)
	require.NoError(t, err)
	return b
}

func TestRelay_ExcludesSender(t *testing.T) {
	s, conns := hostWithClients(t, "a", "b", "c")
	seat(t, s, "a", 0)

	raw := encode(t, protocol.Spray{Event: graffiti.SprayEvent{
		PlayerID: "a", TeamID: 0, X: 0.5, Y: 0.5, CanType: graffiti.CanFat, Timestamp: 1,
	}})

	conns["b"].On("Send", raw).Return(nil).Once()
	conns["c"].On("Send", raw).Return(nil).Once()

	s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: raw})

	conns["b"].AssertExpectations(t)
	conns["c"].AssertExpectations(t)
	conns["a"].AssertNotCalled(t, "Send", mock.Anything)

	select {
	case u := <-s.updates:
		assert.Equal(t, UpdateSpray, u.Kind)
		assert.Equal(t, "a", u.Spray.PlayerID)
	default:
		t.Fatal("no spray update")
	}
}

func TestRelay_SkipsClosedChannels(t *testing.T) {
	s, conns := hostWithClients(t, "a")
	seat(t, s, "a", 0)

	closed := &MockConn{}
	closed.On("Peer").Return("b")
	closed.On("State").Return(transport.StateClosed)
	s.handleEvent(transport.Event{Kind: transport.EventConnection, Conn: closed})

	raw := encode(t, protocol.Spray{Event: graffiti.SprayEvent{PlayerID: "a", Timestamp: 2}})
	s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: raw})

	closed.AssertNotCalled(t, "Send", mock.Anything)
}

func TestSpray_HostDropsForeignSprays(t *testing.T) {
	s, conns := hostWithClients(t, "a", "b")
	seat(t, s, "a", 0)
	seat(t, s, "b", 1)

	for _, tc := range []struct {
		name string
		ev   graffiti.SprayEvent
	}{
		{"another player", graffiti.SprayEvent{PlayerID: "b", TeamID: 1, X: 0.5, Y: 0.5, Timestamp: 1}},
		{"another team", graffiti.SprayEvent{PlayerID: "a", TeamID: 1, X: 0.5, Y: 0.5, Timestamp: 2}},
		{"off the wall", graffiti.SprayEvent{PlayerID: "a", TeamID: 0, X: 2.5, Y: -1, Timestamp: 3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := encode(t, protocol.Spray{Event: tc.ev})
			s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: raw})

			conns["b"].AssertNotCalled(t, "Send", mock.Anything)
			assert.Empty(t, s.updates)
		})
	}

	// A stranger without a roster entry is dropped too.
	stranger := newMockConn("z")
	s.handleEvent(transport.Event{Kind: transport.EventConnection, Conn: stranger})
	raw := encode(t, protocol.Spray{Event: graffiti.SprayEvent{PlayerID: "z", TeamID: 0, X: 0.5, Y: 0.5, Timestamp: 4}})
	s.handleEvent(transport.Event{Kind: transport.EventData, Conn: stranger, Data: raw})

	conns["b"].AssertNotCalled(t, "Send", mock.Anything)
	assert.Empty(t, s.updates)
}

func TestPlayerJoined_HostNormalizesRecord(t *testing.T) {
	s, conns := hostWithClients(t, "a", "b")

	for _, c := range conns {
		c.On("Send", mock.Anything).Return(nil)
	}

	raw := encode(t, protocol.PlayerJoined{Player: graffiti.Player{
		ID: "spoofed", Name: "Ava", TeamID: 3, Score: 99, IsHost: true,
	}})
	s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: raw})

	p, ok := s.store.Player("a")
	require.True(t, ok)
	assert.Equal(t, graffiti.Player{ID: "a", Name: "Ava", TeamID: graffiti.NoTeam}, p)

	_, ok = s.store.Player("spoofed")
	assert.False(t, ok)

	for peer, c := range conns {
		var got protocol.Message
		for _, call := range c.Calls {
			if call.Method != "Send" {
				continue
			}
			msg, err := protocol.Decode(call.Arguments.Get(0).([]byte))
			require.NoError(t, err)
			got = msg
		}
		sync, isSync := got.(protocol.SyncState)
		require.True(t, isSync, "peer %s got %T", peer, got)
		assert.Len(t, sync.State.Players, 2)
	}
}

func TestRequestState_RepliesToAsker(t *testing.T) {
	s, conns := hostWithClients(t, "a", "b")

	conns["a"].On("Send", mock.MatchedBy(func(b []byte) bool {
		msg, err := protocol.Decode(b)
		return err == nil && msg.Kind() == protocol.KindSyncState
	})).Return(nil).Once()

	s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: encode(t, protocol.RequestState{})})

	conns["a"].AssertExpectations(t)
	conns["b"].AssertNotCalled(t, "Send", mock.Anything)
}

func TestHost_IgnoresHostOnlyKindsFromClients(t *testing.T) {
	s, conns := hostWithClients(t, "a")

	state := s.store.Serializable()
	state.Phase = graffiti.PhaseLeaderboard

	for _, m := range []protocol.Message{
		protocol.StartGame{State: state},
		protocol.SyncState{State: state},
		protocol.TimeUpdate{Time: 3},
		protocol.GameEnd{},
		protocol.PlayerLeft{PlayerID: "ABC123"},
	} {
		s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: encode(t, m)})
	}

	v := s.store.State()
	assert.Equal(t, graffiti.PhaseLobby, v.Phase)
	assert.Equal(t, graffiti.GameDuration, v.TimeRemaining)
	assert.Len(t, v.Players, 1)
	assert.Nil(t, v.Grid)
}

func TestHandleEvent_DropsMalformedAndUnknown(t *testing.T) {
	s, conns := hostWithClients(t, "a")
	before := s.store.State()

	for _, raw := range []string{"garbage", `{"type":"emote"}`, `{"type":"spray"}`} {
		s.handleEvent(transport.Event{Kind: transport.EventData, Conn: conns["a"], Data: []byte(raw)})
	}

	assert.Equal(t, before, s.store.State())
	assert.Empty(t, s.updates)
}

func TestClientClose_RemovesPlayer(t *testing.T) {
	s, conns := hostWithClients(t, "a", "b")
	s.store.AddPlayer(graffiti.Player{ID: "a", Name: "Ava", TeamID: graffiti.NoTeam})
	require.NoError(t, s.store.JoinTeam("a", 1))

	conns["b"].On("Send", mock.MatchedBy(func(b []byte) bool {
		msg, err := protocol.Decode(b)
		return err == nil && msg == protocol.PlayerLeft{PlayerID: "a"}
	})).Return(nil).Once()

	s.handleEvent(transport.Event{Kind: transport.EventClose, Conn: conns["a"]})

	conns["b"].AssertExpectations(t)
	_, ok := s.store.Player("a")
	assert.False(t, ok)
	assert.Empty(t, s.store.State().Teams[1].PlayerIDs)
	assert.NotContains(t, s.conns, "a")
}

func TestClient_HostChannelLossIsTerminal(t *testing.T) {
	host := newMockConn("ABC123")

	s := newSession(RoleClient, "ABC123", "me", nil, Options{})
	s.hostConn = host

	s.handleEvent(transport.Event{Kind: transport.EventClose, Conn: host})

	require.ErrorIs(t, s.fatal, ErrHostDisconnected)

	u := <-s.updates
	assert.Equal(t, UpdateHostLost, u.Kind)

	// A later endpoint error does not replace the first failure.
	s.handleEvent(transport.Event{Kind: transport.EventError, Err: errors.New("socket gone")})
	assert.ErrorIs(t, s.fatal, ErrHostDisconnected)
}

func TestClient_RefusesInboundChannels(t *testing.T) {
	s := newSession(RoleClient, "ABC123", "me", nil, Options{})

	stranger := newMockConn("stranger")
	stranger.On("Close").Return(nil).Once()

	s.handleEvent(transport.Event{Kind: transport.EventConnection, Conn: stranger})

	stranger.AssertExpectations(t)
	assert.Empty(t, s.conns)
}

func TestUserMessage(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: ZZZ999", ErrRoomNotFound), "Room not found. Check the code and try again."},
		{fmt.Errorf("%w: %w", ErrTransport, errors.New("socket closed")), "Connection error: socket closed"},
		{ErrHostDisconnected, "The host left the game."},
		{fmt.Errorf("%w: playing", ErrWrongPhase), "You can't do that right now."},
		{ErrNoCan, "Your can is empty. Answer a question to refill it."},
		{fmt.Errorf("%w: (2.5, -1)", ErrInvalidPoint), "That spot is off the wall."},
		{graffiti.ErrAlreadyAnswered, "You already answered this one."},
		{errors.New("boom"), "Something went wrong: boom"},
	} {
		assert.Equal(t, tc.want, UserMessage(tc.err))
	}
}

func TestRoomCodes(t *testing.T) {
	for range 200 {
		code, err := NewRoomCode()
		require.NoError(t, err)
		assert.True(t, ValidCode(code), code)
	}

	// Bytes past the last whole multiple of the alphabet are redrawn.
	biased := []byte{252, 253, 254, 255, 0, 1, 35, 36, 71, 251}
	code, err := roomCode(bytes.NewReader(append(biased, make([]byte, CodeLength)...)))
	require.NoError(t, err)
	assert.Equal(t, "AB9A99", code)

	_, err = roomCode(bytes.NewReader([]byte{255, 255, 255, 255, 255, 255}))
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "ABC123", NormalizeCode(" abc123 "))
	assert.False(t, ValidCode("ABC12"))
	assert.False(t, ValidCode("abc123"))
	assert.False(t, ValidCode("ABC-12"))
}
