package server

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// response buffers the output of a handler so that it can be written with a
// Content-Length header, which keeps HTTP/1.1 connections reusable.
type response struct {
	req         *http.Request
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newResponse(req *http.Request) *response {
	return &response{req: req, header: make(http.Header)}
}

func (w *response) Header() http.Header {
	return w.header
}

func (w *response) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode
}

func (w *response) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !bodyAllowed(w.status) {
		return 0, http.ErrBodyNotAllowed
	}
	return w.body.Write(b)
}

func (w *response) writeTo(bw *bufio.Writer, keepAlive bool) error {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	h := w.header
	if _, ok := h["Date"]; !ok {
		h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if bodyAllowed(w.status) {
		if _, ok := h["Content-Type"]; !ok && w.body.Len() > 0 {
			h.Set("Content-Type", http.DetectContentType(w.body.Bytes()))
		}
		h.Set("Content-Length", strconv.Itoa(w.body.Len()))
	} else {
		h.Del("Content-Length")
	}
	if keepAlive {
		h.Del("Connection")
	} else {
		h.Set("Connection", "close")
	}

	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %03d %s\r\n", w.status, http.StatusText(w.status)); err != nil {
		return err
	}
	if err := h.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if bodyAllowed(w.status) && (w.req == nil || w.req.Method != http.MethodHead) {
		if _, err := bw.Write(w.body.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
