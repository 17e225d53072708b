package request

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"

	userAgentPrefix     = "User-Agent: "
	contentLengthPrefix = "Content-Length: "
)

// Request 表示一个已解析的 HTTP 请求，每个连接只构建一次
type Request struct {
	// Method 不做校验，未识别的方法原样保留
	Method string
	// Path 是原始的 request-target，不做 URL 解码
	Path string

	UserAgent    string
	HasUserAgent bool

	// ContentLength 为 -1 表示请求中没有 Content-Length
	ContentLength int64
	Body          []byte
}

// HasBody 当且仅当请求声明了 Content-Length 时为 true
func (r *Request) HasBody() bool {
	return r.ContentLength >= 0
}

// Read 从 reader 中读取并解析一个请求。
// 只读取到请求头结束的空行，以及 Content-Length 声明的字节数。
func Read(r *bufio.Reader) (*Request, error) {
	requestLine, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if requestLine == "" {
		return nil, httperrors.New(httperrors.MalformedRequest, "missing request line", nil)
	}

	// 按单个空格切分：第一个是 method，第二个是 path
	tokens := strings.Split(requestLine, " ")
	if len(tokens) < 2 {
		return nil, httperrors.New(httperrors.MalformedRequest, "invalid request line "+strconv.Quote(requestLine), nil)
	}

	req := &Request{
		Method:        tokens[0],
		Path:          tokens[1],
		ContentLength: -1,
	}

	// 读取请求头，直到空行；重复出现的头以最后一次为准
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, userAgentPrefix); ok {
			req.UserAgent = v
			req.HasUserAgent = true
		}
		if v, ok := strings.CutPrefix(line, contentLengthPrefix); ok {
			n, err := strconv.ParseUint(v, 10, 63)
			if err != nil {
				return nil, httperrors.New(httperrors.MalformedRequest, "invalid Content-Length "+strconv.Quote(v), err)
			}
			req.ContentLength = int64(n)
		}
	}

	if !req.HasBody() {
		return req, nil
	}

	// 逐步读入请求体，不按声明长度预先分配
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, req.ContentLength); err != nil {
		return nil, httperrors.New(httperrors.TruncatedStream, "reading body", err)
	}
	if !utf8.Valid(body.Bytes()) {
		return nil, httperrors.New(httperrors.MalformedRequest, "body is not valid UTF-8", nil)
	}
	req.Body = body.Bytes()
	return req, nil
}

// readLine 读取一行并去掉结尾的 CRLF
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", httperrors.New(httperrors.TruncatedStream, "reading line", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
