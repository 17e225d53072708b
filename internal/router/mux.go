package router

import (
	"strings"

	"github.com/HnustLzh2/http/internal/request"
	"github.com/HnustLzh2/http/internal/response"
	"github.com/HnustLzh2/http/internal/storage"
)

const (
	filesPrefix   = "/files/"
	echoPrefix    = "/echo/"
	userAgentPath = "/user-agent"
	rootPath      = "/"
)

// Kind 标识一条路由。每个请求由 Match 归到唯一的 Kind。
type Kind int

const (
	FileWrite Kind = iota
	FileRead
	Echo
	UserAgent
	Root
	NotFound
)

func (k Kind) String() string {
	switch k {
	case FileWrite:
		return "file-write"
	case FileRead:
		return "file-read"
	case Echo:
		return "echo"
	case UserAgent:
		return "user-agent"
	case Root:
		return "root"
	default:
		return "not-found"
	}
}

// Match 按顺序匹配，第一个命中的规则生效：
//
//	POST /files/{name}（配置了目录且有 body） -> FileWrite
//	GET  /files/{name}（配置了目录）          -> FileRead
//	/echo/{text}                              -> Echo
//	/user-agent                               -> UserAgent
//	/                                         -> Root
//	其他                                      -> NotFound
//
// 没有配置目录时，/files/ 请求会继续往下匹配。
func Match(req *request.Request, dir storage.Dir) Kind {
	files := dir != "" && strings.HasPrefix(req.Path, filesPrefix)
	switch {
	case files && req.Method == request.MethodPost && req.HasBody():
		return FileWrite
	case files && req.Method == request.MethodGet:
		return FileRead
	case strings.HasPrefix(req.Path, echoPrefix):
		return Echo
	case req.Path == userAgentPath:
		return UserAgent
	case req.Path == rootPath:
		return Root
	default:
		return NotFound
	}
}

// HandlerFunc 路由处理函数类型。目录每次调用时显式传入，处理函数不持有状态。
type HandlerFunc func(req *request.Request, dir storage.Dir) (*response.Response, error)

// Mux 非 net/http 版本的极简路由器
type Mux struct {
	routes map[Kind]HandlerFunc
}

// NewMux 创建一个空的路由器
func NewMux() *Mux {
	return &Mux{
		routes: make(map[Kind]HandlerFunc),
	}
}

// New 创建一个注册好全部路由的路由器
func New() *Mux {
	m := NewMux()
	m.Handle(FileWrite, fileWriteHandler)
	m.Handle(FileRead, fileReadHandler)
	m.Handle(Echo, echoHandler)
	m.Handle(UserAgent, userAgentHandler)
	m.Handle(Root, rootHandler)
	m.Handle(NotFound, notFoundHandler)
	return m
}

// Handle 注册路由
func (m *Mux) Handle(kind Kind, handler HandlerFunc) {
	m.routes[kind] = handler
}

// Serve 根据 Match 的结果分发到对应的 Handler，没有注册的路由返回 404
func (m *Mux) Serve(req *request.Request, dir storage.Dir) (*response.Response, error) {
	if h, ok := m.routes[Match(req, dir)]; ok {
		return h(req, dir)
	}
	return response.NotFound(), nil
}

// Route 与 Serve 相同，但返回的响应总不为 nil：错误会被映射成 4xx/5xx。
// 错误本身仍然返回，供调用方记录日志。
func (m *Mux) Route(req *request.Request, dir storage.Dir) (*response.Response, error) {
	resp, err := m.Serve(req, dir)
	if err == nil {
		return resp, nil
	}
	if resp := response.FromError(err); resp != nil {
		return resp, err
	}
	return response.New(response.StatusInternalServerError, response.TypeTextPlain, nil), err
}
