package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/stealthrocket/taskhttp/internal/print/human"
	"github.com/stealthrocket/taskhttp/internal/print/textprint"
	"github.com/stealthrocket/taskhttp/internal/router"
	"github.com/stealthrocket/taskhttp/internal/stream"
	"github.com/stealthrocket/taskhttp/internal/task"
)

const tasksUsage = `
Usage:	taskhttp tasks [options]

   The tasks command lists the goroutines of a running taskhttp server, as
   reported by its /tasks endpoint.

Example:

   $ taskhttp tasks
   ID  NAME
   1   main.main
   7   accept
   9   request-1

   $ taskhttp tasks -o json
   {
     "id": 1,
     "name": "main.main"
   }
   ...

Options:
   -a, --addr host:port   Address of the server (default from the configuration)
   -c, --config path      Path to the taskhttp configuration file
   -h, --help             Show this usage information
   -o, --output format    Output format, one of: text, json, yaml
   -q, --quiet            Only display the goroutine ids
   -w, --watch interval   Refresh the list at the given interval until interrupted
`

const tasksTimeout = 10 * time.Second

type goroutine struct {
	ID   int64  `json:"id"   yaml:"id"   text:"ID"`
	Name string `json:"name" yaml:"name" text:"NAME"`
}

func tasks(ctx context.Context, args []string) error {
	var (
		addr   string
		output = outputFormat("text")
		quiet  bool
		watch  human.Duration
	)

	flagSet := newFlagSet("taskhttp tasks", tasksUsage)
	stringVar(flagSet, &addr, "a", "addr")
	customVar(flagSet, &output, "o", "output")
	boolVar(flagSet, &quiet, "q", "quiet")
	customVar(flagSet, &watch, "w", "watch")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError(`Unexpected arguments: %q`, args)
	}
	if watch < 0 {
		return usageError(`Invalid watch interval: %v`, watch)
	}

	if addr == "" {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		addr = config.Addr()
	}

	limit := rate.Inf
	if watch > 0 {
		limit = rate.Every(time.Duration(watch))
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}
	limiter := rate.NewLimiter(limit, 1)
	client := &http.Client{Timeout: tasksTimeout}

	for n := 0; ; n++ {
		// Wait fails when ctx is done or expires before the next refresh.
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		list, err := fetchTasks(ctx, client, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if n > 0 {
			fmt.Fprintln(stdout)
		}
		rows := make([]goroutine, len(list))
		for i, t := range list {
			rows[i] = goroutine{ID: t.ID, Name: t.Name}
		}
		w := newWriter[goroutine](stdout, output,
			textprint.Header[goroutine](!quiet),
			textprint.List[goroutine](quiet),
		)
		if err := stream.WriteAll(w, rows...); err != nil {
			return err
		}

		if watch == 0 {
			return nil
		}
	}
}

func fetchTasks(ctx context.Context, client *http.Client, addr string) ([]task.Info, error) {
	url := "http://" + addr + router.TasksPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("GET %s: %s", url, res.Status)
	}
	return router.ParseTasks(res.Body)
}
