package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

// Upper limit of unread request body bytes discarded to keep a connection
// alive, larger bodies cause the connection to be closed.
const maxDiscardedBody = 256 << 10

var http2Preface = []byte(http2.ClientPreface)

// conn is the dispatch.Handle of an accepted connection.
type conn struct {
	server *Server
	rwc    net.Conn
	ctx    context.Context
	cancel context.CancelFunc
	idle   atomic.Bool
	once   sync.Once
}

func newConn(s *Server, rwc net.Conn) *conn {
	c := &conn{server: s, rwc: rwc}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.idle.Store(true)
	return c
}

// Close closes the underlying connection, causing Run to return. Only the
// first call may return an error.
func (c *conn) Close() (err error) {
	c.once.Do(func() {
		c.cancel()
		err = c.rwc.Close()
	})
	return err
}

// Run serves the connection until the peer goes away or the connection is
// closed. Connections starting with the HTTP/2 client preface are served
// as cleartext HTTP/2, all others as HTTP/1.x.
func (c *conn) Run() {
	defer func() {
		if err := recover(); err != nil {
			c.logger().WithField("panic", err).Errorf("serving connection\n%s", debug.Stack())
		}
		_ = c.Close()
	}()

	br := bufio.NewReader(c.rwc)
	if isHTTP2(br) {
		c.serveHTTP2(br)
	} else {
		c.serveHTTP1(br)
	}
}

func (c *conn) serveHTTP2(br *bufio.Reader) {
	c.idle.Store(false)

	h2 := &http2.Server{}
	h2.ServeConn(&bufferedConn{Conn: c.rwc, r: br}, &http2.ServeConnOpts{
		Context: c.ctx,
		Handler: c.server.Handler,
	})
}

func (c *conn) serveHTTP1(br *bufio.Reader) {
	bw := bufio.NewWriter(c.rwc)

	for {
		c.idle.Store(true)
		if c.server.draining.Load() {
			return
		}

		req, err := http.ReadRequest(br)
		c.idle.Store(false)
		if err != nil {
			c.readError(bw, err)
			return
		}

		req.RemoteAddr = c.rwc.RemoteAddr().String()
		req = req.WithContext(c.ctx)

		if !c.serveRequest(bw, req) {
			return
		}
	}
}

// serveRequest runs the handler and writes the response, returning whether
// the connection can be reused for another request.
func (c *conn) serveRequest(bw *bufio.Writer, req *http.Request) bool {
	w := newResponse(req)
	c.server.Handler.ServeHTTP(w, req)

	keepAlive := !req.Close && !c.server.draining.Load()
	if expectsContinue(req) {
		// The body was never requested from the client.
		keepAlive = false
	} else if keepAlive {
		keepAlive = discardBody(req.Body)
	}
	_ = req.Body.Close()

	if err := w.writeTo(bw, keepAlive); err != nil {
		c.logger().WithError(err).Debug("writing response")
		return false
	}
	return keepAlive
}

func (c *conn) readError(bw *bufio.Writer, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return
	case errors.As(err, &netErr):
		c.logger().WithError(err).Debug("reading request")
		return
	}

	c.logger().WithError(err).Debug("malformed request")
	w := newResponse(nil)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "400 Bad Request")
	_ = w.writeTo(bw, false)
}

func (c *conn) logger() logrus.FieldLogger {
	return c.server.logger().WithField("remote", c.rwc.RemoteAddr().String())
}

func expectsContinue(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Expect"), "100-continue")
}

func discardBody(body io.Reader) bool {
	n, err := io.CopyN(io.Discard, body, maxDiscardedBody+1)
	return n <= maxDiscardedBody && (err == nil || err == io.EOF)
}

// isHTTP2 reports whether the connection starts with the HTTP/2 client
// preface. Bytes are only peeked so the reader still holds the complete
// stream afterwards.
func isHTTP2(br *bufio.Reader) bool {
	for n := 1; n <= len(http2Preface); n++ {
		if br.Buffered() > n {
			n = min(br.Buffered(), len(http2Preface))
		}
		b, err := br.Peek(n)
		if !bytes.HasPrefix(http2Preface, b) || err != nil {
			return false
		}
		if len(b) == len(http2Preface) {
			return true
		}
	}
	return false
}

// bufferedConn reads through the buffer used to detect the HTTP/2 preface.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
