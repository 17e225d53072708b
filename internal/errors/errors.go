package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 表示单个连接上的失败类别
type Kind int

const (
	None Kind = iota
	MalformedRequest
	TruncatedStream
	FilesystemFailure
	MissingUserAgent
	ConnectionClosed
	SocketReadFailure
	SocketWriteFailure
	InitFailure
	UnsupportedBackend
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case MalformedRequest:
		return "malformed request"
	case TruncatedStream:
		return "truncated stream"
	case FilesystemFailure:
		return "filesystem failure"
	case MissingUserAgent:
		return "missing user agent"
	case ConnectionClosed:
		return "connection closed"
	case SocketReadFailure:
		return "socket read failed"
	case SocketWriteFailure:
		return "socket write failed"
	case InitFailure:
		return "initialization failed"
	case UnsupportedBackend:
		return "unsupported backend"
	default:
		return fmt.Sprintf("unknown error kind: %d", int(k))
	}
}

// Error 携带失败类别、可选的说明以及底层错误
type Error struct {
	Kind       Kind
	Message    string
	underlying error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Message != "" {
		s = fmt.Sprintf("%s: %s", s, e.Message)
	}
	if e.underlying != nil {
		return fmt.Sprintf("%s (underlying: %v)", s, e.underlying)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// New 创建一个指定类别的 *Error
func New(kind Kind, message string, underlying error) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		underlying: underlying,
	}
}

// KindOf 返回错误链中第一个 *Error 的类别，没有则返回 None
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return None
}

// Is 判断 err 是否属于指定类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
