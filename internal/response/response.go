package response

import (
	"bytes"
	"io"
	"strconv"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

const (
	CRLF = "\r\n"

	TypeTextPlain   = "text/plain"
	TypeOctetStream = "application/octet-stream"
)

const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// StatusText 返回状态码对应的原因短语
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusCreated:
		return "Created"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return ""
	}
}

// Response 表示一个待发送的响应
type Response struct {
	StatusCode    int
	StatusMessage string
	ContentType   string
	Body          []byte
}

// New 构造响应，原因短语和默认 Content-Type 自动补齐
func New(code int, contentType string, body []byte) *Response {
	if contentType == "" {
		contentType = TypeTextPlain
	}
	return &Response{
		StatusCode:    code,
		StatusMessage: StatusText(code),
		ContentType:   contentType,
		Body:          body,
	}
}

func OK(contentType string, body []byte) *Response {
	return New(StatusOK, contentType, body)
}

func Created() *Response {
	return New(StatusCreated, TypeTextPlain, nil)
}

func NotFound() *Response {
	return New(StatusNotFound, TypeTextPlain, nil)
}

// FromError 把连接上的错误映射成响应。
// 连接已经不可用的错误返回 nil，调用方直接关闭连接即可。
func FromError(err error) *Response {
	switch httperrors.KindOf(err) {
	case httperrors.MalformedRequest, httperrors.MissingUserAgent:
		return New(StatusBadRequest, TypeTextPlain, nil)
	case httperrors.FilesystemFailure:
		return New(StatusInternalServerError, TypeTextPlain, nil)
	case httperrors.TruncatedStream, httperrors.ConnectionClosed,
		httperrors.SocketReadFailure, httperrors.SocketWriteFailure:
		return nil
	default:
		return New(StatusInternalServerError, TypeTextPlain, nil)
	}
}

// WriteTo 按 状态行、Content-Type、Content-Length、空行、body 的顺序写出响应。
// Content-Length 总是取 body 的实际字节数。
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	contentType := r.ContentType
	if contentType == "" {
		contentType = TypeTextPlain
	}
	message := r.StatusMessage
	if message == "" {
		message = StatusText(r.StatusCode)
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(contentType) + len(r.Body))
	buf.WriteString("HTTP/1.1 " + strconv.Itoa(r.StatusCode) + " " + message + CRLF)
	buf.WriteString("Content-Type: " + contentType + CRLF)
	buf.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + CRLF)
	buf.WriteString(CRLF)
	buf.Write(r.Body)
	return buf.WriteTo(w)
}
