package main

import "context"

const unknownCommand = `taskhttp %s: unknown command
For a list of commands available, run 'taskhttp help'.`

func unknown(ctx context.Context, cmd string) error {
	return usageError(unknownCommand, cmd)
}
