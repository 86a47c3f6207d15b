package main

import (
	"context"
	"fmt"
	"os"
	"time"

	pprof "github.com/google/pprof/profile"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/stealthrocket/taskhttp/internal/print/human"
	"github.com/stealthrocket/taskhttp/internal/stream"
	"github.com/stealthrocket/taskhttp/internal/task"
)

const describeUsage = `
Usage:	taskhttp describe <profile> [options]

   The describe command summarizes a goroutine profile by task. Profiles are
   written by 'taskhttp serve --goroutine-profile' or by the goroutine profile
   of net/http/pprof. Goroutines started by the server carry a "task" label
   naming the task they run; other goroutines are counted under (none).

Example:

   $ taskhttp describe goroutines.pb.gz
   Start:       Mon, 19 Oct 2026 10:00:00 UTC
   Goroutines:  6
   Stacks:      4
   ---
   TASK       GOROUTINES
   (none)     3
   accept     1
   request-1  1
   request-2  1

Options:
   -c, --config path    Path to the taskhttp configuration file
   -h, --help           Show this usage information
   -o, --output format  Output format, one of: text, json, yaml
`

const unlabeled = "(none)"

type taskSummary struct {
	Task       string `json:"task"       yaml:"task"       text:"TASK"`
	Goroutines int64  `json:"goroutines" yaml:"goroutines" text:"GOROUTINES"`
}

func describe(ctx context.Context, args []string) error {
	output := outputFormat("text")

	flagSet := newFlagSet("taskhttp describe", describeUsage)
	customVar(flagSet, &output, "o", "output")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return usageError(`Expected exactly one goroutine profile as argument`)
	}

	path, err := human.Path(args[0]).Resolve()
	if err != nil {
		return err
	}
	p, err := readProfile(path)
	if err != nil {
		return err
	}

	if output == "text" {
		fmt.Fprintf(stdout, "Start:       %s\n", time.Unix(0, p.TimeNanos).UTC().Format(time.RFC1123))
		fmt.Fprintf(stdout, "Goroutines:  %d\n", countGoroutines(p))
		fmt.Fprintf(stdout, "Stacks:      %d\n", len(p.Sample))
		fmt.Fprintf(stdout, "---\n")
	}

	w := newWriter[taskSummary](stdout, output)
	return stream.WriteAll(w, summarizeTasks(p)...)
}

func readProfile(path string) (*pprof.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := pprof.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// countGoroutines returns the number of goroutines in p. Goroutines with the
// same stack and labels share a sample, so this is not the number of samples.
func countGoroutines(p *pprof.Profile) (n int64) {
	for _, sample := range p.Sample {
		if len(sample.Value) > 0 {
			n += sample.Value[0]
		}
	}
	return n
}

// summarizeTasks counts the goroutines of p by the value of their task label,
// sorted by task name.
func summarizeTasks(p *pprof.Profile) []taskSummary {
	counts := make(map[string]int64)
	for _, sample := range p.Sample {
		if len(sample.Value) == 0 {
			continue
		}
		name := unlabeled
		if values := sample.Label[task.Label]; len(values) > 0 {
			name = values[0]
		}
		counts[name] += sample.Value[0]
	}

	names := maps.Keys(counts)
	slices.Sort(names)

	summary := make([]taskSummary, len(names))
	for i, name := range names {
		summary[i] = taskSummary{Task: name, Goroutines: counts[name]}
	}
	return summary
}
