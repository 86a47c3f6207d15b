package main

import (
	"strings"
	"testing"

	"github.com/stealthrocket/taskhttp/internal/assert"
)

var versionTests = tests{
	"show the version command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "version", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp version\n")
		assert.Equal(t, stderr, "")
	},

	"show the version command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "version", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp version\n")
		assert.Equal(t, stderr, "")
	},

	"the version starts with the prefix taskhttp": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "taskhttp ")
		assert.Equal(t, stderr, "")

		_, version, _ := strings.Cut(strings.TrimSpace(stdout), " ")
		assert.NotEqual(t, version, "")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := taskhttp(t, "version", "-_")
		assert.Equal(t, exitCode, 2)
	},
}
