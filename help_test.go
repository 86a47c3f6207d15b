package main

import (
	"testing"

	"github.com/stealthrocket/taskhttp/internal/assert"
)

var helpTests = tests{
	"show the help command usage": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help of another command": func(t *testing.T) {
		for _, cmd := range []string{"config", "describe", "serve", "tasks", "version"} {
			stdout, stderr, exitCode := taskhttp(t, "help", cmd)
			assert.Equal(t, exitCode, 0)
			assert.HasPrefix(t, stdout, "Usage:\ttaskhttp "+cmd)
			assert.Equal(t, stderr, "")
		}
	},

	"show the help of an unknown command": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "help", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "taskhttp help whatever: unknown command\n")
	},
}
