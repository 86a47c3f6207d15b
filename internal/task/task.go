// Package task names goroutines and enumerates the goroutines that are alive
// in the process.
//
// The Go runtime does not expose goroutine identifiers, so the package reads
// them from the stack traces produced by runtime.Stack. Goroutines started with
// Go carry a name which List reports instead of their entry function, and a
// pprof label so that goroutine profiles can be grouped by task name.
package task

import (
	"context"
	"runtime"
	"runtime/pprof"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/stealthrocket/taskhttp/internal/buffer"
)

// Label is the pprof label key set on goroutines started by Go.
const Label = "task"

// Info describes a goroutine found by List.
type Info struct {
	ID    int64  `json:"id"    yaml:"id"    text:"ID"`
	Name  string `json:"name"  yaml:"name"  text:"NAME"`
	State string `json:"state" yaml:"state" text:"STATE"`
}

var (
	mu    sync.Mutex
	names = map[int64]string{}

	stacks buffer.Pool
)

// Go starts fn on a new goroutine named name. The name is visible to List
// when Go returns, and until fn returns.
func Go(ctx context.Context, name string, fn func(context.Context)) {
	registered := make(chan struct{})
	go func() {
		id := currentID()
		synchronize(func() { names[id] = name })
		defer synchronize(func() { delete(names, id) })
		close(registered)

		pprof.Do(ctx, pprof.Labels(Label, name), fn)
	}()
	<-registered
}

// List returns the goroutines alive at the time of the call, ordered by
// ascending identifier.
func List() []Info {
	buf := stacks.Get(buffer.DefaultSize)
	defer buffer.Release(&buf, &stacks)

	tasks := parseStacks(allStacks(buf))

	synchronize(func() {
		for i := range tasks {
			if name, ok := names[tasks[i].ID]; ok {
				tasks[i].Name = name
			}
		}
	})

	slices.SortFunc(tasks, func(a, b Info) bool {
		return a.ID < b.ID
	})
	return tasks
}

func synchronize(fn func()) {
	mu.Lock()
	defer mu.Unlock()

	fn()
}

func currentID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	id, _, _ := parseHeader(firstLine(buf[:n]))
	return id
}

func allStacks(buf *buffer.Buffer) []byte {
	for {
		n := runtime.Stack(buf.Data, true)
		if n < len(buf.Data) {
			return buf.Data[:n]
		}
		buf.Grow()
	}
}

// Name returns the name of the calling goroutine if it was started by Go, or
// the empty string otherwise.
func Name() (name string) {
	id := currentID()
	synchronize(func() { name = names[id] })
	return name
}
