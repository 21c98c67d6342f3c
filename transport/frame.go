/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"fmt"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 1 << 20
	sendQueueDepth = 64
)

type frameType string

// Frames exchanged between an endpoint and the broker.
//
//	hello    broker -> endpoint  registration accepted
//	connect  endpoint -> broker  dial Peer over channel Conn
//	         broker -> endpoint  Peer dialed you over channel Conn
//	open     broker -> endpoint  channel Conn reached Peer
//	data     both ways           Payload for channel Conn
//	close    both ways           channel Conn is gone
//	error    broker -> endpoint  Error for channel Conn, or for the endpoint
const (
	frameHello   frameType = "hello"
	frameConnect frameType = "connect"
	frameOpen    frameType = "open"
	frameData    frameType = "data"
	frameClose   frameType = "close"
	frameError   frameType = "error"
)

const (
	codePeerUnavailable = "peer-unavailable"
	codeUnavailableID   = "unavailable-id"
	codeInvalidID       = "invalid-id"
)

type frame struct {
	Type    frameType `json:"type"`
	Conn    string    `json:"conn,omitempty"`
	Peer    string    `json:"peer,omitempty"`
	Payload []byte    `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// err converts an error frame back into a sentinel.
func (f frame) err() error {
	switch f.Error {
	case codePeerUnavailable:
		return fmt.Errorf("%w: %s", ErrPeerUnavailable, f.Peer)
	case codeUnavailableID:
		return fmt.Errorf("%w: %s", ErrIDTaken, f.Peer)
	}
	return fmt.Errorf("broker: %s", f.Error)
}
