package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func TestTaskhttp(t *testing.T) {
	t.Run("config", configTests.run)
	t.Run("describe", describeTests.run)
	t.Run("help", helpTests.run)
	t.Run("root", rootTests.run)
	t.Run("serve", serveTests.run)
	t.Run("tasks", tasksTests.run)
	t.Run("unknown", unknownTests.run)
	t.Run("version", versionTests.run)
}

type tests map[string]func(*testing.T)

func (suite tests) run(t *testing.T) {
	names := maps.Keys(suite)
	slices.Sort(names)

	for _, name := range names {
		t.Run(name, suite[name])
	}
}

// taskhttp runs the program with args, capturing what it writes to stdout
// and stderr.
func taskhttp(t *testing.T, args ...string) (outstr, errstr string, exitCode int) {
	return taskhttpContext(t, context.Background(), args...)
}

func taskhttpContext(t *testing.T, ctx context.Context, args ...string) (outstr, errstr string, exitCode int) {
	outbuf, errbuf := capture(t)
	exitCode = root(ctx, args...)
	return outbuf.String(), errbuf.String(), exitCode
}

// capture redirects the program outputs to buffers until the end of the test.
func capture(t *testing.T) (outbuf, errbuf *lockedBuilder) {
	outbuf, errbuf = new(lockedBuilder), new(lockedBuilder)
	prevOut, prevErr := stdout, stderr
	stdout, stderr = outbuf, errbuf
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return outbuf, errbuf
}

type lockedBuilder struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuilder) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuilder) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
