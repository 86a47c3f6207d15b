package main

import (
	"context"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

const configUsage = `
Usage:	taskhttp config [options]

   The config command prints the effective configuration, which is the
   configuration file given with -c merged over the default values.

Example:

   $ taskhttp config
   server:
     host: ::1
     port: 9090
     reusePort: false
     gracePeriod: 0s
   log:
     level: info
     format: text

Options:
   -c, --config path    Path to the taskhttp configuration file
   -h, --help           Show usage information
   -o, --output format  Output format, one of: text, json, yaml
`

func configCmd(ctx context.Context, args []string) error {
	output := outputFormat("text")

	flagSet := newFlagSet("taskhttp config", configUsage)
	customVar(flagSet, &output, "o", "output")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError(`Unexpected arguments: %q`, args)
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	switch output {
	case "json":
		e := json.NewEncoder(stdout)
		e.SetEscapeHTML(false)
		e.SetIndent("", "  ")
		return e.Encode(config)
	default:
		e := yaml.NewEncoder(stdout)
		e.SetIndent(2)
		if err := e.Encode(config); err != nil {
			return err
		}
		return e.Close()
	}
}
