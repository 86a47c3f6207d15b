package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stealthrocket/taskhttp/internal/assert"
	"github.com/stealthrocket/taskhttp/internal/config"
)

var configTests = tests{
	"show the config command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "config", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\ttaskhttp config ")
		assert.Equal(t, stderr, "")
	},

	"the default configuration is printed as yaml": func(t *testing.T) {
		stdout, stderr, exitCode := taskhttp(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.Contains(t, stdout, "\n  gracePeriod: 0s\n")

		c, err := config.ReadConfig(strings.NewReader(stdout))
		assert.OK(t, err)
		assert.DeepEqual(t, c, config.DefaultConfig())
	},

	"the configuration file is merged over the defaults": func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 8080\n  gracePeriod: 5s\n")

		stdout, stderr, exitCode := taskhttp(t, "config", "-c", path, "-o", "json")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		var c config.Config
		assert.OK(t, json.Unmarshal([]byte(stdout), &c))
		assert.Equal(t, c.Server.Host, config.DefaultHost)
		assert.Equal(t, c.Server.Port, 8080)
		assert.Equal(t, c.Server.GracePeriod.String(), "5s")
		assert.Equal(t, c.Log.Level, "info")
	},

	"an invalid configuration file causes an error": func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: -1\n")

		stdout, stderr, exitCode := taskhttp(t, "config", "--config", path)
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "ERR: taskhttp config: reading ")
		assert.Contains(t, stderr, "invalid server port: -1")
	},

	"unknown configuration fields are rejected": func(t *testing.T) {
		path := writeConfig(t, "server:\n  listen: 8080\n")

		_, stderr, exitCode := taskhttp(t, "config", "-c", path)
		assert.Equal(t, exitCode, 1)
		assert.Contains(t, stderr, "listen")
	},

	"an unsupported output format causes an error": func(t *testing.T) {
		_, _, exitCode := taskhttp(t, "config", "-o", "xml")
		assert.Equal(t, exitCode, 2)
	},
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal("writing taskhttp configuration:", err)
	}
	return path
}
