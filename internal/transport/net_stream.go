package transport

import (
	"errors"
	"io"
	"net"
	"syscall"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

// NetStream 直接在 net.Conn 上读写，并把错误归类
type NetStream struct {
	conn net.Conn
}

// NewNetStream 在 conn 上创建 NetStream
func NewNetStream(conn net.Conn) *NetStream {
	return &NetStream{conn: conn}
}

func (s *NetStream) Read(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, httperrors.New(httperrors.SocketReadFailure, "not connected", nil)
	}

	n, err := s.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.New(httperrors.ConnectionClosed, "", err)
		}
		return n, httperrors.New(httperrors.SocketReadFailure, "", err)
	}
	return n, nil
}

func (s *NetStream) Write(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, httperrors.New(httperrors.SocketWriteFailure, "not connected", nil)
	}

	n, err := s.conn.Write(buf)
	if err != nil {
		// 对端已关闭或重置
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.New(httperrors.ConnectionClosed, "", err)
		}
		return n, httperrors.New(httperrors.SocketWriteFailure, "", err)
	}
	return n, nil
}

// Close 可以重复调用
func (s *NetStream) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return httperrors.New(httperrors.ConnectionClosed, "close failed", err)
	}
	return nil
}
