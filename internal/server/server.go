package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/HnustLzh2/http/internal/errors"
	"github.com/HnustLzh2/http/internal/request"
	"github.com/HnustLzh2/http/internal/response"
	"github.com/HnustLzh2/http/internal/router"
	"github.com/HnustLzh2/http/internal/storage"
	"github.com/HnustLzh2/http/internal/transport"
)

// DefaultAddr 默认监听地址
const DefaultAddr = "0.0.0.0:4221"

// Config 启动后只读，所有连接共享
type Config struct {
	Addr string
	// Directory 为空时文件路由不可用
	Directory string
	Backend   transport.Backend
}

// Server 每个连接一个 goroutine，每个连接只处理一个请求
type Server struct {
	cfg Config
	mux *router.Mux
	log zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	conns    sync.WaitGroup
}

func New(cfg Config, log zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Backend == "" {
		cfg.Backend = transport.BackendNet
	}
	return &Server{
		cfg: cfg,
		mux: router.New(),
		log: log,
	}
}

// ListenAndServe 绑定 cfg.Addr 并开始服务
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(listener)
}

// Serve 在 listener 上接受连接，直到 Close 被调用。
// 返回前会等待所有正在处理的连接结束。
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		// Close 在 Serve 之前被调用
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()
	defer s.conns.Wait()

	s.log.Info().
		Str("addr", listener.Addr().String()).
		Str("directory", s.cfg.Directory).
		Str("backend", string(s.cfg.Backend)).
		Msg("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("listener closed, no longer accepting connections")
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed")
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

// Close 关闭监听器，Serve 随后返回。在 Serve 之前调用时，Serve 会立即返回。
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	log := s.log.With().
		Str("conn_id", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	stream, err := transport.Wrap(conn, s.cfg.Backend)
	if err != nil {
		log.Error().Err(err).Str("backend", string(s.cfg.Backend)).Msg("failed to set up connection stream")
		conn.Close()
		return
	}
	defer stream.Close()

	// 单个连接出错不能影响监听器和其他连接
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("connection handler panicked")
		}
	}()

	log.Debug().Msg("accepted connection")
	s.serveStream(stream, log)
}

// serveStream 读一个请求、路由、写回响应
func (s *Server) serveStream(stream io.ReadWriter, log zerolog.Logger) {
	req, err := request.Read(bufio.NewReader(stream))
	if err != nil {
		resp := response.FromError(err)
		if resp == nil {
			log.Debug().Err(err).Msg("connection ended before a full request was read")
			return
		}
		log.Warn().Err(err).Msg("failed to parse request")
		s.writeResponse(stream, resp, log)
		return
	}

	log = log.With().Str("method", req.Method).Str("path", req.Path).Logger()
	log.Info().Msg("request received")

	resp, err := s.mux.Route(req, storage.Dir(s.cfg.Directory))
	if err != nil {
		if httperrors.Is(err, httperrors.FilesystemFailure) {
			log.Error().Err(err).Msg("filesystem failure")
		} else {
			log.Warn().Err(err).Msg("request rejected")
		}
	}
	s.writeResponse(stream, resp, log)
}

func (s *Server) writeResponse(w io.Writer, resp *response.Response, log zerolog.Logger) {
	n, err := resp.WriteTo(w)
	if err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("failed to write response")
		return
	}
	log.Info().Int("status", resp.StatusCode).Int64("bytes", n).Msg("response written")
}
