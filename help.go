package main

import (
	"context"
	"fmt"
	"strings"
)

const helpUsage = `
Usage:	taskhttp <command> [options]

Server Commands:
   serve     Start the HTTP server

Debugging Commands:
   tasks     List the goroutines of a running server
   describe  Summarize a goroutine profile by task

Other Commands:
   config    Show the taskhttp configuration
   help      Show usage information about taskhttp commands
   version   Show the taskhttp version information

For a description of each command, run 'taskhttp help <command>'.`

func help(ctx context.Context, args []string) error {
	flagSet := newFlagSet("taskhttp help", helpUsage)

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}

	var cmd string
	var msg string

	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "config":
		msg = configUsage
	case "describe":
		msg = describeUsage
	case "help", "":
		msg = helpUsage
	case "serve":
		msg = serveUsage
	case "tasks":
		msg = tasksUsage
	case "version":
		msg = versionUsage
	default:
		return usageError("taskhttp help %s: unknown command", cmd)
	}

	fmt.Fprintln(stdout, strings.TrimSpace(msg))
	return nil
}
