// Package router implements the HTTP surface of the server: the /tasks
// diagnostic endpoint and the not found response for every other route.
package router

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"

	"github.com/stealthrocket/taskhttp/internal/logging"
	"github.com/stealthrocket/taskhttp/internal/task"
)

const (
	// TasksPath is the path of the diagnostic endpoint.
	TasksPath = "/tasks"

	contentType = "text/plain; charset=utf-8"
	notFound    = "Not found."
)

// New returns the handler for all the routes served by the server. Responses
// are gzip-compressed when they are large enough and the client accepts it.
func New(logger logrus.FieldLogger) http.Handler {
	return gzhttp.GzipHandler(&router{logger: logging.Or(logger)})
}

type router struct {
	logger logrus.FieldLogger
}

func (rt *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.logger.WithFields(logrus.Fields{
		"remote": r.RemoteAddr,
		"method": r.Method,
		"path":   r.URL.Path,
		"task":   task.Name(),
	}).Info("serve")

	if r.URL.Path == TasksPath && r.Method == http.MethodGet {
		showTasks(w)
		return
	}
	showDefault(w)
}

func showTasks(w http.ResponseWriter) {
	text := FormatTasks(task.List())
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func showDefault(w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, notFound)
}

// FormatTasks renders one "[<id>] <name>" line per task, in the order of
// the input.
func FormatTasks(tasks []task.Info) string {
	text := new(strings.Builder)
	text.Grow(32 * len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(text, "[%d] %s\n", t.ID, t.Name)
	}
	return text.String()
}

// ParseTasks parses the output of the diagnostic endpoint.
func ParseTasks(r io.Reader) ([]task.Info, error) {
	var tasks []task.Info

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var t task.Info
		id, name, ok := strings.Cut(line, "] ")
		if !ok || !strings.HasPrefix(id, "[") {
			return nil, fmt.Errorf("malformed task line: %q", line)
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(id[1:]), "%d", &t.ID); err != nil {
			return nil, fmt.Errorf("malformed task id: %q: %w", line, err)
		}
		t.Name = name
		tasks = append(tasks, t)
	}

	return tasks, nil
}
