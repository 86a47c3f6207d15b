// Package server accepts TCP connections and hands each of them to a
// dispatch.Dispatcher, which serves it on its own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stealthrocket/taskhttp/internal/dispatch"
	"github.com/stealthrocket/taskhttp/internal/logging"
	"github.com/stealthrocket/taskhttp/internal/task"
)

var (
	// ErrServerStarted is returned by Start when the server is already
	// accepting connections.
	ErrServerStarted = errors.New("server already started")

	// ErrServerClosed is returned by Start and Wait after the server was
	// stopped.
	ErrServerClosed = errors.New("server closed")
)

const (
	// DefaultAddr is the address used when Server.Addr is empty.
	DefaultAddr = "[::1]:9090"

	shutdownPollInterval = 10 * time.Millisecond
	maxAcceptDelay       = 1 * time.Second
)

type state int

const (
	idle state = iota
	started
	closed
)

// Server is an HTTP server running one goroutine per connection.
//
// Connections are registered in Dispatcher for as long as they are open, which
// lets Stop and Shutdown close them.
type Server struct {
	// Addr is the TCP address to listen on, DefaultAddr if empty.
	Addr string

	// Handler serves the requests. It must not be nil.
	Handler http.Handler

	// Dispatcher runs the connections. A new dispatcher is created by Start
	// if nil.
	Dispatcher *dispatch.Dispatcher

	// Logger receives the server logs. Logging is disabled when nil.
	Logger logrus.FieldLogger

	// ReusePort sets SO_REUSEPORT on the listening socket, allowing multiple
	// processes to bind the same address.
	ReusePort bool

	listener net.Listener
	state    state
	done     chan struct{}
	err      error
	draining atomic.Bool
	mu       sync.Mutex
}

// Start binds the listening socket and begins accepting connections on a
// goroutine named "accept". Errors binding the socket are returned.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case started:
		return ErrServerStarted
	case closed:
		return ErrServerClosed
	}

	if s.Handler == nil {
		return errors.New("server has no handler")
	}

	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	lc := net.ListenConfig{}
	if s.ReusePort {
		lc.Control = reusePort
	}

	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	if s.Dispatcher == nil {
		s.Dispatcher = &dispatch.Dispatcher{Logger: s.Logger}
	}
	s.listener = l
	s.state = started
	s.done = make(chan struct{})

	s.logger().WithField("addr", l.Addr().String()).Info("start")

	task.Go(context.Background(), "accept", func(context.Context) {
		defer close(s.done)
		s.err = s.serve(l)
	})
	return nil
}

// ListenAddr returns the address the server is listening on, or nil if the
// server was not started.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until the accept loop exits, returning the error that caused
// it to stop. The error is nil when the server was stopped.
func (s *Server) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return ErrServerClosed
	}
	<-done
	return s.err
}

// Stop stops accepting connections and force-closes every connection still
// registered. It does not wait for the connection goroutines to return.
func (s *Server) Stop() {
	d, stopped := s.close()
	if stopped {
		s.logger().Info("stop")
	}
	if d != nil {
		d.ShutdownAll()
	}
}

// Shutdown stops accepting connections, closes idle connections, and waits
// for the active ones to complete their current request. When ctx is done
// before all connections are closed, the remaining ones are force-closed and
// the context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	d, stopped := s.close()
	if stopped {
		s.logger().Info("stop")
	}
	if d == nil {
		return nil
	}

	for {
		closeIdleConns(d)
		if d.Len() == 0 {
			return nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, shutdownPollInterval)
		err := d.Wait(waitCtx)
		cancel()

		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			d.ShutdownAll()
			return ctx.Err()
		}
	}
}

// close closes the listener and waits for the accept loop to exit, so every
// connection it accepted is registered in the returned dispatcher. stopped is
// true for the call which stopped a started server.
func (s *Server) close() (d *dispatch.Dispatcher, stopped bool) {
	s.mu.Lock()
	d, done := s.Dispatcher, s.done
	if s.state != closed {
		stopped = s.state == started
		s.state = closed
		if s.listener != nil {
			_ = s.listener.Close()
		}
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	return d, stopped
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == closed
}

func closeIdleConns(d *dispatch.Dispatcher) {
	for _, h := range d.ListRunning() {
		if c, ok := h.(*conn); ok && c.idle.Load() {
			_ = c.Close()
		}
	}
}

func (s *Server) serve(l net.Listener) error {
	var delay time.Duration

	for {
		rwc, err := l.Accept()
		if err != nil {
			if s.closing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if !errors.As(err, &netErr) {
				return err
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.logger().WithError(err).Warnf("accept error; retrying in %v", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if s.closing() {
			_ = rwc.Close()
			return nil
		}

		c := newConn(s, rwc)
		if _, err := s.Dispatcher.Dispatch(c); err != nil {
			s.logger().WithError(err).Error("dispatch")
			_ = c.Close()
		}
	}
}

func (s *Server) logger() logrus.FieldLogger {
	return logging.Or(s.Logger)
}
