package task

import (
	"bytes"
	"strconv"
	"strings"
)

const (
	headerPrefix    = "goroutine "
	createdByPrefix = "created by "
)

// parseStacks extracts one Info per goroutine from the output of
// runtime.Stack. Goroutines are named after their entry function, which is
// the last frame printed before the "created by" line.
func parseStacks(b []byte) []Info {
	var tasks []Info

	for _, block := range bytes.Split(b, []byte("\n\n")) {
		lines := strings.Split(strings.TrimSpace(string(block)), "\n")
		if len(lines) == 0 {
			continue
		}
		id, state, ok := parseHeader(lines[0])
		if !ok {
			continue
		}
		tasks = append(tasks, Info{
			ID:    id,
			Name:  entryFunction(lines[1:]),
			State: state,
		})
	}

	return tasks
}

// parseHeader parses lines like "goroutine 42 [chan receive, 2 minutes]:".
func parseHeader(line string) (id int64, state string, ok bool) {
	if !strings.HasPrefix(line, headerPrefix) {
		return 0, "", false
	}
	line = line[len(headerPrefix):]

	n, rest, _ := strings.Cut(line, " ")
	id, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return 0, "", false
	}

	if i := strings.IndexByte(rest, '['); i >= 0 {
		if j := strings.LastIndexByte(rest, ']'); j > i {
			state = rest[i+1 : j]
		}
	}
	return id, state, true
}

func entryFunction(frames []string) string {
	entry := ""

scan:
	for _, line := range frames {
		switch {
		case strings.HasPrefix(line, "\t"):
			// source location of the previous frame
		case strings.HasPrefix(line, createdByPrefix):
			break scan
		case strings.HasPrefix(line, "..."):
			// elided frames
		default:
			entry = functionName(line)
		}
	}

	if entry == "" {
		entry = "goroutine"
	}
	return entry
}

func functionName(frame string) string {
	if strings.HasSuffix(frame, ")") {
		if i := strings.LastIndexByte(frame, '('); i > 0 {
			frame = frame[:i]
		}
	}
	return frame
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
