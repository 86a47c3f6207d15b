package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stealthrocket/taskhttp/internal/assert"
	"github.com/stealthrocket/taskhttp/internal/config"
	"github.com/stealthrocket/taskhttp/internal/task"
)

var serveTests = tests{
	"show the serve command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "serve", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp serve ")
		assert.Equal(t, stderr, "")
	},

	"an invalid port is a usage error": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "serve", "--port", "70000")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "invalid server port: 70000\n")
	},

	"serve until the context is canceled": func(t *testing.T) {
		addr := freeAddr(t)
		host, port, _ := net.SplitHostPort(addr)

		_, errbuf := capture(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		exit := make(chan int, 1)
		go func() {
			exit <- root(ctx, "serve", "--host", host, "--port", port, "--grace-period", "5s")
		}()

		transport := &http.Transport{}
		defer transport.CloseIdleConnections()
		client := &http.Client{Transport: transport}

		var list []task.Info
		var err error
		for deadline := time.Now().Add(5 * time.Second); ; {
			if list, err = fetchTasks(ctx, client, addr); err == nil {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("server did not start:", err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		names := make(map[string]bool)
		for _, info := range list {
			names[info.Name] = true
		}
		assert.True(t, names["accept"])
		assert.True(t, names["request-1"])

		transport.CloseIdleConnections()
		cancel()

		select {
		case code := <-exit:
			assert.Equal(t, code, 0)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
		assert.Contains(t, errbuf.String(), "msg=start")
		assert.Contains(t, errbuf.String(), "msg=stop")
	},

	"serving on an address in use causes an error": func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		assert.OK(t, err)
		defer l.Close()
		_, port, _ := net.SplitHostPort(l.Addr().String())

		_, stderr, exitCode := taskhttp(t, "serve", "--host", "127.0.0.1", "--port", port)
		assert.Equal(t, exitCode, 1)
		assert.HasPrefix(t, stderr, "ERR: taskhttp serve: listening on 127.0.0.1:"+port)
	},
}

var tasksTests = tests{
	"show the tasks command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "tasks", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp tasks ")
		assert.Equal(t, stderr, "")
	},

	"list the goroutines of a server as a table": func(t *testing.T) {
		addr := startServer(t)

		stdout, stderr, exitCode := taskhttp(t, "tasks", "--addr", addr)
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.HasPrefix(t, stdout, "ID ")
		assert.Contains(t, stdout, " accept\n")
		assert.Contains(t, stdout, " request-1\n")
	},

	"list the goroutine ids only": func(t *testing.T) {
		addr := startServer(t)

		stdout, _, exitCode := taskhttp(t, "tasks", "-a", addr, "-q")
		assert.Equal(t, exitCode, 0)

		var prev int64
		for _, line := range strings.Split(strings.TrimSuffix(stdout, "\n"), "\n") {
			id, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
			assert.OK(t, err)
			assert.Less(t, prev, id)
			prev = id
		}
	},

	"list the goroutines as json": func(t *testing.T) {
		addr := startServer(t)

		stdout, _, exitCode := taskhttp(t, "tasks", "-a", addr, "-o", "json")
		assert.Equal(t, exitCode, 0)

		names := make(map[string]bool)
		d := json.NewDecoder(strings.NewReader(stdout))
		for {
			var g goroutine
			if err := d.Decode(&g); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				t.Fatal(err)
			}
			names[g.Name] = true
		}
		assert.True(t, names["accept"])
	},

	"watch the goroutines until the context expires": func(t *testing.T) {
		addr := startServer(t)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		stdout, stderr, exitCode := taskhttpContext(t, ctx, "tasks", "-a", addr, "--watch", "20ms")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.True(t, strings.Count(stdout, "ID ") >= 2)
	},

	"a server error causes the command to fail": func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "oops", http.StatusInternalServerError)
		}))
		defer s.Close()
		addr := strings.TrimPrefix(s.URL, "http://")

		_, stderr, exitCode := taskhttp(t, "tasks", "-a", addr)
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stderr, "ERR: taskhttp tasks: GET http://"+addr+"/tasks: 500 Internal Server Error\n")
	},

	"a negative watch interval is a usage error": func(t *testing.T) {
		_, stderr, exitCode := taskhttp(t, "tasks", "--watch", "-1s")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "Invalid watch interval")
	},
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

// startServer starts a server on a random port of the loopback interface and
// returns its address.
func startServer(t *testing.T) string {
	t.Helper()
	c := config.DefaultConfig()
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 0

	s := c.NewServer(nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s.ListenAddr().String()
}
