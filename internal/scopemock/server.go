package scopemock

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server exposes State on a raw SCPI socket: newline-terminated commands in,
// newline-terminated replies or definite-length blocks out.
type Server struct {
	config            *Config
	state             *State
	logger            zerolog.Logger
	listener          net.Listener
	stopChan          chan struct{}
	activeConnections map[string]net.Conn
	connectionsMutex  sync.RWMutex
	wg                sync.WaitGroup
	idleTimeout       time.Duration
}

// NewServer creates a new SCPI socket server.
func NewServer(cfg *Config, st *State, logger zerolog.Logger) *Server {
	return &Server{
		config:            cfg,
		state:             st,
		logger:            logger,
		stopChan:          make(chan struct{}),
		activeConnections: make(map[string]net.Conn),
		idleTimeout:       5 * time.Minute,
	}
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() (net.Addr, error) {
	addr := net.JoinHostPort(s.config.Network.Host, fmt.Sprint(s.config.Network.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("SCPI server listening")
	return listener.Addr(), nil
}

// ListenAndServe binds and serves until Close.
func (s *Server) ListenAndServe() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on the bound listener.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("failed to accept connection")
			continue
		}

		if !s.track(conn) {
			s.logger.Warn().Str("client", conn.RemoteAddr().String()).Msg("rejected connection: limit reached")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()

	limit := s.config.Network.MaxConnections
	if limit > 0 && len(s.activeConnections) >= limit {
		return false
	}
	s.activeConnections[conn.RemoteAddr().String()] = conn
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	delete(s.activeConnections, conn.RemoteAddr().String())
}

// handleConnection serves one client until it disconnects or idles out.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	client := conn.RemoteAddr().String()
	s.logger.Debug().Str("client", client).Msg("client connected")

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			s.logger.Debug().Str("client", client).Err(err).Msg("client disconnected")
			return
		}

		resp := s.state.ExecuteCommand(line)
		out := resp.Bytes()
		if out == nil {
			continue
		}
		if _, err := conn.Write(out); err != nil {
			s.logger.Debug().Str("client", client).Err(err).Msg("write failed")
			return
		}
	}
}

// Close stops accepting, drops every client and waits for handlers to exit.
func (s *Server) Close() error {
	select {
	case <-s.stopChan:
		return nil
	default:
		close(s.stopChan)
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.connectionsMutex.RLock()
	for _, conn := range s.activeConnections {
		conn.Close()
	}
	s.connectionsMutex.RUnlock()

	s.wg.Wait()
	return err
}
