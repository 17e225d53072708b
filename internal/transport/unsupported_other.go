//go:build !linux

package transport

import (
	"net"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

func newIOURingStream(net.Conn) (Stream, error) {
	return nil, httperrors.New(httperrors.UnsupportedBackend, "io_uring requires linux", nil)
}

func newURingStream(net.Conn) (Stream, error) {
	return nil, httperrors.New(httperrors.UnsupportedBackend, "io_uring requires linux", nil)
}
