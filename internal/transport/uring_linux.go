//go:build linux

package transport

import (
	"io"
	"net"
	"os"

	"github.com/godzie44/go-uring/uring"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

// URingStream 通过 godzie44/go-uring 收发数据。
// Ring 不是并发安全的，一个 URingStream 只能由一个 goroutine 使用。
type URingStream struct {
	conn net.Conn
	file *os.File
	ring *uring.Ring
}

func newURingStream(conn net.Conn) (Stream, error) {
	file, err := connFile(conn)
	if err != nil {
		return nil, err
	}

	ring, err := uring.New(ringEntries)
	if err != nil {
		file.Close()
		return nil, httperrors.New(httperrors.InitFailure, "failed to initialize io_uring", err)
	}

	return &URingStream{
		conn: conn,
		file: file,
		ring: ring,
	}, nil
}

// complete 提交已入队的操作并等待一个完成事件
func (s *URingStream) complete(kind httperrors.Kind) (int, error) {
	if _, err := s.ring.Submit(); err != nil {
		return 0, httperrors.New(kind, "failed to submit request", err)
	}

	cqe, err := s.ring.WaitCQEvents(1)
	if err != nil {
		return 0, httperrors.New(kind, "failed to wait for completion", err)
	}
	defer s.ring.SeenCQE(cqe)

	if err := cqe.Error(); err != nil {
		return 0, httperrors.New(kind, "operation failed", err)
	}
	return int(cqe.Res), nil
}

func (s *URingStream) Read(buf []byte) (int, error) {
	if s.file == nil {
		return 0, httperrors.New(httperrors.ConnectionClosed, "stream closed", nil)
	}

	if err := s.ring.QueueSQE(uring.Read(s.file.Fd(), buf, 0), 0, 0); err != nil {
		return 0, httperrors.New(httperrors.SocketReadFailure, "failed to queue read request", err)
	}

	n, err := s.complete(httperrors.SocketReadFailure)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, httperrors.New(httperrors.ConnectionClosed, "connection closed by peer", io.EOF)
	}
	return n, nil
}

func (s *URingStream) Write(buf []byte) (int, error) {
	if s.file == nil {
		return 0, httperrors.New(httperrors.ConnectionClosed, "stream closed", nil)
	}

	written := 0
	for written < len(buf) {
		if err := s.ring.QueueSQE(uring.Write(s.file.Fd(), buf[written:], 0), 0, 0); err != nil {
			return written, httperrors.New(httperrors.SocketWriteFailure, "failed to queue write request", err)
		}

		n, err := s.complete(httperrors.SocketWriteFailure)
		if err != nil {
			return written, err
		}
		if n <= 0 {
			return written, httperrors.New(httperrors.ConnectionClosed, "connection closed during write", nil)
		}
		written += n
	}
	return written, nil
}

func (s *URingStream) Close() error {
	if s.file == nil {
		return nil
	}

	fileErr := s.file.Close()
	s.file = nil
	connErr := s.conn.Close()
	s.ring.Close()

	if fileErr != nil {
		return httperrors.New(httperrors.ConnectionClosed, "close failed", fileErr)
	}
	if connErr != nil {
		return httperrors.New(httperrors.ConnectionClosed, "close failed", connErr)
	}
	return nil
}
