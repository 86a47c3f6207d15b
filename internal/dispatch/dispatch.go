// Package dispatch runs connection handles on their own goroutines and keeps
// track of the ones in flight.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stealthrocket/taskhttp/internal/logging"
	"github.com/stealthrocket/taskhttp/internal/task"
)

// ErrAlreadyRunning is returned by Dispatch when the handle is still
// registered from a previous call.
var ErrAlreadyRunning = errors.New("handle is already running")

// Handle is a unit of work dispatched to its own goroutine, typically one
// accepted client connection.
//
// Handles are used as map keys and therefore must be comparable; pointer
// types are the usual choice.
type Handle interface {
	// Run processes the handle until completion.
	Run()
	// Close forces Run to return. It must be safe to call more than once and
	// concurrently with Run.
	Close() error
}

// Task is the registry entry of a dispatched handle.
type Task struct {
	ID        uuid.UUID `json:"id"        yaml:"id"        text:"TASK ID"`
	Name      string    `json:"name"      yaml:"name"      text:"NAME"`
	StartTime time.Time `json:"startTime" yaml:"startTime" text:"-"`
}

// Dispatcher spawns a goroutine per dispatched handle and maintains the
// registry of handles that have not yet completed.
//
// The zero value is ready to use.
type Dispatcher struct {
	// Logger receives debug messages about the lifecycle of handles. Logging
	// is disabled when nil.
	Logger logrus.FieldLogger

	count   atomic.Uint64
	running map[Handle]*Task
	drained chan struct{}

	once sync.Once
	mu   sync.Mutex
}

func (d *Dispatcher) init() {
	d.running = make(map[Handle]*Task)
	d.drained = make(chan struct{})
	close(d.drained)
}

// Dispatch registers h and starts running it on a new goroutine named
// "request-<n>". The method returns immediately.
//
// The handle is removed from the registry when Run returns or when
// NotifyClosed is called, whichever comes first.
func (d *Dispatcher) Dispatch(h Handle) (Task, error) {
	d.once.Do(d.init)

	t := &Task{
		ID:        uuid.New(),
		Name:      fmt.Sprintf("request-%d", d.count.Add(1)),
		StartTime: time.Now(),
	}

	var err error
	d.synchronize(func() {
		if _, ok := d.running[h]; ok {
			err = ErrAlreadyRunning
			return
		}
		if len(d.running) == 0 {
			d.drained = make(chan struct{})
		}
		d.running[h] = t
	})
	if err != nil {
		return Task{}, err
	}

	d.logger().WithFields(logrus.Fields{
		"task": t.Name,
		"id":   t.ID,
	}).Debug("dispatch")

	task.Go(context.Background(), t.Name, func(context.Context) {
		defer d.release(h, t)
		h.Run()
	})
	return *t, nil
}

// NotifyClosed removes h from the registry. Nothing happens if h is not
// registered.
func (d *Dispatcher) NotifyClosed(h Handle) {
	d.release(h, nil)
}

// release removes h from the registry. When t is not nil, the entry is only
// removed if it still belongs to t, so a goroutine that outlives its entry
// never deregisters a later dispatch of the same handle.
func (d *Dispatcher) release(h Handle, t *Task) {
	d.once.Do(d.init)

	var removed *Task
	d.synchronize(func() {
		current, ok := d.running[h]
		if !ok || (t != nil && current != t) {
			return
		}
		delete(d.running, h)
		if len(d.running) == 0 {
			close(d.drained)
		}
		removed = current
	})

	if removed != nil {
		d.logger().WithFields(logrus.Fields{
			"task":     removed.Name,
			"id":       removed.ID,
			"duration": time.Since(removed.StartTime),
		}).Debug("closed")
	}
}

// ListRunning returns a snapshot of the registered handles, in no particular
// order.
func (d *Dispatcher) ListRunning() []Handle {
	d.once.Do(d.init)

	var handles []Handle
	d.synchronize(func() {
		handles = make([]Handle, 0, len(d.running))
		for h := range d.running {
			handles = append(handles, h)
		}
	})
	return handles
}

// Tasks returns a snapshot of the registry entries, in no particular order.
func (d *Dispatcher) Tasks() []Task {
	d.once.Do(d.init)

	var tasks []Task
	d.synchronize(func() {
		tasks = make([]Task, 0, len(d.running))
		for _, t := range d.running {
			tasks = append(tasks, *t)
		}
	})
	return tasks
}

// Len returns the number of registered handles.
func (d *Dispatcher) Len() (n int) {
	d.once.Do(d.init)
	d.synchronize(func() { n = len(d.running) })
	return n
}

// ShutdownAll closes every registered handle. It does not wait for the
// goroutines running them to return; use Wait for that.
func (d *Dispatcher) ShutdownAll() {
	for _, h := range d.ListRunning() {
		if err := h.Close(); err != nil {
			d.logger().WithError(err).Debug("close")
		}
	}
}

// Wait blocks until the registry is empty or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.once.Do(d.init)

	var drained <-chan struct{}
	d.synchronize(func() { drained = d.drained })

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) synchronize(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn()
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	return logging.Or(d.Logger)
}
