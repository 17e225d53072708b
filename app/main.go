package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/HnustLzh2/http/internal/server"
	"github.com/HnustLzh2/http/internal/transport"
)

// options 命令行参数
type options struct {
	server  server.Config
	verbose bool
	pretty  bool
}

func main() {
	// 示例：./your_program.sh --directory /tmp/data/...
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	log := newLogger(os.Stderr, opts.verbose, opts.pretty)
	srv := server.New(opts.server, log)

	// 收到 SIGINT / SIGTERM 时关闭监听器，Serve 等待已有连接处理完后返回
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("server failed to start")
		os.Exit(1)
	}
}

// parseFlags 解析命令行参数，错误信息写到 output
func parseFlags(args []string, output io.Writer) (options, error) {
	var (
		opts    options
		backend string
	)

	fs := flag.NewFlagSet("http-server", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.server.Directory, "directory", "", "directory that /files/ reads from and writes to; file routes are disabled when empty")
	fs.StringVar(&opts.server.Addr, "addr", server.DefaultAddr, "address to listen on")
	fs.StringVar(&backend, "backend", string(transport.BackendNet), "connection I/O backend: net, iouring or uring")
	fs.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	fs.BoolVar(&opts.pretty, "pretty", false, "human readable console logs instead of JSON")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintln(output, err)
		return options{}, err
	}

	b, err := transport.ParseBackend(backend)
	if err != nil {
		fmt.Fprintln(output, err)
		return options{}, err
	}
	opts.server.Backend = b

	if dir := opts.server.Directory; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			fmt.Fprintln(output, "invalid --directory:", err)
			return options{}, err
		}
		if !info.IsDir() {
			err := fmt.Errorf("%s is not a directory", dir)
			fmt.Fprintln(output, "invalid --directory:", err)
			return options{}, err
		}
	}
	return opts, nil
}

func newLogger(w io.Writer, verbose, pretty bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
