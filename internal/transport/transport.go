package transport

import (
	"io"
	"net"
	"os"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

// Stream 是一个已接受连接上的双向字节流
type Stream interface {
	io.Reader
	io.Writer
	Close() error
}

// Backend 选择 Stream 的实现
type Backend string

const (
	// BackendNet 直接使用 net.Conn
	BackendNet Backend = "net"
	// BackendIOURing 通过 iceber/iouring-go 收发（仅 Linux）
	BackendIOURing Backend = "iouring"
	// BackendURing 通过 godzie44/go-uring 收发（仅 Linux）
	BackendURing Backend = "uring"
)

// ringEntries 是每个连接的 io_uring 队列深度
const ringEntries = 32

// ParseBackend 解析命令行传入的后端名称
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case "":
		return BackendNet, nil
	case BackendNet, BackendIOURing, BackendURing:
		return b, nil
	default:
		return "", httperrors.New(httperrors.UnsupportedBackend, name, nil)
	}
}

// Wrap 把 conn 包装成指定后端的 Stream。返回的 Stream 负责关闭 conn。
func Wrap(conn net.Conn, backend Backend) (Stream, error) {
	switch backend {
	case BackendNet, "":
		return NewNetStream(conn), nil
	case BackendIOURing:
		return newIOURingStream(conn)
	case BackendURing:
		return newURingStream(conn)
	default:
		return nil, httperrors.New(httperrors.UnsupportedBackend, string(backend), nil)
	}
}

// connFile 复制 conn 的文件描述符，返回的文件处于阻塞模式
func connFile(conn net.Conn) (*os.File, error) {
	fc, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return nil, httperrors.New(httperrors.UnsupportedBackend, "connection has no file descriptor", nil)
	}
	f, err := fc.File()
	if err != nil {
		return nil, httperrors.New(httperrors.InitFailure, "failed to duplicate socket", err)
	}
	return f, nil
}
