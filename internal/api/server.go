package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Config struct {
	Addr      string        `mapstructure:"addr"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		Heartbeat: 15 * time.Second,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Addr == "" {
		return errFactory.WithData(errors.ErrConfiguration, "http addr is empty")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errFactory.Wrap(errors.ErrConfiguration, err).WithMessage("invalid http addr " + c.Addr)
	}
	if c.Heartbeat <= 0 {
		return errFactory.WithData(errors.ErrConfiguration, "http heartbeat must be positive")
	}
	return nil
}

// Server is the HTTP listener for the renderer-facing API.
type Server struct {
	server *http.Server
	logger logger.Logger
}

func NewServer(addr string, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		logger: log,
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err).WithMessage("failed to listen on " + s.server.Addr)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errFactory := errors.New()
	serveErr := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		serveErr <- s.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(errors.ErrInternal, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	s.logger.Info().Msg("HTTP server stopped")

	return nil
}
