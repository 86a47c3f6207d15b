package main

import (
	"testing"

	"github.com/stealthrocket/taskhttp/internal/assert"
)

var rootTests = tests{
	"invoking taskhttp without a command prints the introduction message": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "taskhttp - HTTP server with one goroutine per connection\n")
		assert.Equal(t, stderr, "")
	},

	"show the taskhttp help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the taskhttp help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp <command> ")
		assert.Equal(t, stderr, "")
	},
}
