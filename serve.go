package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/taskhttp/internal/print/human"
)

const serveUsage = `
Usage:	taskhttp serve [options]

   The serve command starts the HTTP server and runs until it receives SIGINT
   or SIGTERM. Each accepted connection is served by its own goroutine, named
   request-<n>. The server answers GET /tasks with the list of goroutines alive
   in the process; every other request gets a 404 response.

   On termination, the server stops accepting connections and waits for the
   in-flight requests to complete for up to the grace period, then closes the
   remaining connections.

Example:

   $ taskhttp serve --host 127.0.0.1 --port 8080
   INFO[2026-10-19T10:00:00Z] start  addr="127.0.0.1:8080"

Options:
   -c, --config path              Path to the taskhttp configuration file
       --grace-period duration    Time to wait for requests to complete on shutdown
       --goroutine-profile path   Write a goroutine profile to path before shutting down
   -h, --help                     Show this usage information
       --host host                Host to listen on (default ::1)
       --port port                Port to listen on (default 9090)
       --reuse-port               Set SO_REUSEPORT on the listening socket
`

func serve(ctx context.Context, args []string) error {
	var (
		host             string
		port             int
		reusePort        bool
		gracePeriod      human.Duration
		goroutineProfile human.Path
	)

	flagSet := newFlagSet("taskhttp serve", serveUsage)
	stringVar(flagSet, &host, "host")
	intVar(flagSet, &port, "port")
	boolVar(flagSet, &reusePort, "reuse-port")
	customVar(flagSet, &gracePeriod, "grace-period")
	customVar(flagSet, &goroutineProfile, "goroutine-profile")

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
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			config.Server.Host = host
		case "port":
			config.Server.Port = port
		case "reuse-port":
			config.Server.ReusePort = reusePort
		case "grace-period":
			config.Server.GracePeriod = gracePeriod
		}
	})
	if err := config.Validate(); err != nil {
		return usageError("%s", err)
	}

	logger, err := config.NewLogger(stderr)
	if err != nil {
		return err
	}

	server := config.NewServer(logger)
	if err := server.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Wait)
	group.Go(func() error {
		<-ctx.Done()

		if goroutineProfile != "" {
			if err := writeGoroutineProfile(goroutineProfile); err != nil {
				logger.WithError(err).Warn("could not write goroutine profile")
			} else {
				logger.WithField("path", goroutineProfile).Info("goroutine profile written")
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GracePeriod())
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			logger.WithFields(logrus.Fields{
				"gracePeriod": time.Duration(config.Server.GracePeriod),
			}).Warn("grace period exceeded, connections were closed")
			err = nil
		}
		return err
	})
	return group.Wait()
}

func writeGoroutineProfile(path human.Path) error {
	p, err := path.Resolve()
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := pprof.Lookup("goroutine").WriteTo(f, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
