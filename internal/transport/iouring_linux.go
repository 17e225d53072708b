//go:build linux

package transport

import (
	"io"
	"net"
	"os"

	"github.com/iceber/iouring-go"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

// IOURingStream 通过 iceber/iouring-go 在已接受的套接字上收发数据，每个连接一个 ring。
// 使用 Read/Write 而不是 Recv/Send：后者不设置结果解析，ReturnInt 拿不到字节数。
type IOURingStream struct {
	conn   net.Conn
	file   *os.File
	fd     int
	iour   *iouring.IOURing
	closed bool
}

func newIOURingStream(conn net.Conn) (Stream, error) {
	file, err := connFile(conn)
	if err != nil {
		return nil, err
	}

	iour, err := iouring.New(ringEntries)
	if err != nil {
		file.Close()
		return nil, httperrors.New(httperrors.InitFailure, "failed to initialize io_uring", err)
	}

	return &IOURingStream{
		conn: conn,
		file: file,
		fd:   int(file.Fd()),
		iour: iour,
	}, nil
}

func (s *IOURingStream) Read(buf []byte) (int, error) {
	if s.closed {
		return 0, httperrors.New(httperrors.ConnectionClosed, "stream closed", nil)
	}

	ch := make(chan iouring.Result, 1)
	if _, err := s.iour.SubmitRequest(iouring.Read(s.fd, buf), ch); err != nil {
		return 0, httperrors.New(httperrors.SocketReadFailure, "failed to submit read request", err)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, httperrors.New(httperrors.SocketReadFailure, "read failed", err)
	}
	if n == 0 && len(buf) > 0 {
		return 0, httperrors.New(httperrors.ConnectionClosed, "connection closed by peer", io.EOF)
	}
	return n, nil
}

func (s *IOURingStream) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, httperrors.New(httperrors.ConnectionClosed, "stream closed", nil)
	}

	written := 0
	for written < len(buf) {
		ch := make(chan iouring.Result, 1)
		if _, err := s.iour.SubmitRequest(iouring.Write(s.fd, buf[written:]), ch); err != nil {
			return written, httperrors.New(httperrors.SocketWriteFailure, "failed to submit write request", err)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return written, httperrors.New(httperrors.SocketWriteFailure, "write failed", err)
		}
		if n <= 0 {
			return written, httperrors.New(httperrors.ConnectionClosed, "connection closed during write", nil)
		}
		written += n
	}
	return written, nil
}

// Close 关闭复制出的描述符、原连接以及 ring
func (s *IOURingStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	fileErr := s.file.Close()
	connErr := s.conn.Close()
	s.iour.Close()

	if fileErr != nil {
		return httperrors.New(httperrors.ConnectionClosed, "close failed", fileErr)
	}
	if connErr != nil {
		return httperrors.New(httperrors.ConnectionClosed, "close failed", connErr)
	}
	return nil
}
