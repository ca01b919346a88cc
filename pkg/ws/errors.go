package ws

import (
	"errors"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotConnected     = errors.New("not connected")
	ErrRequestTimeout   = hermes.ErrCallTimeout
)
