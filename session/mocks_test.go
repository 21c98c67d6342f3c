/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"github.com/stretchr/testify/mock"

	"github.com/Seednode/graffiti/transport"
)

// --- transport.Conn ---

type MockConn struct {
	mock.Mock
}

func newMockConn(peer string) *MockConn {
	c := &MockConn{}
	c.On("ID").Return("conn-" + peer).Maybe()
	c.On("Peer").Return(peer).Maybe()
	c.On("State").Return(transport.StateOpen).Maybe()
	return c
}

func (m *MockConn) ID() string {
	return m.Called().String(0)
}

func (m *MockConn) Peer() string {
	return m.Called().String(0)
}

func (m *MockConn) State() transport.State {
	return m.Called().Get(0).(transport.State)
}

func (m *MockConn) Send(data []byte) error {
	return m.Called(data).Error(0)
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}
