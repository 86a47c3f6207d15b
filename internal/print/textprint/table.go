// Package textprint writes streams of values as human-readable tables.
package textprint

import (
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"golang.org/x/exp/slices"

	"github.com/stealthrocket/taskhttp/internal/stream"
)

type TableOption[T any] func(*tableWriter[T])

// Header controls whether the column names are written on the first line.
func Header[T any](enable bool) TableOption[T] {
	return func(t *tableWriter[T]) { t.header = enable }
}

// List restricts the output to the first column.
func List[T any](enable bool) TableOption[T] {
	return func(t *tableWriter[T]) { t.list = enable }
}

// OrderBy sorts the rows with the less function before writing them.
func OrderBy[T any](less func(T, T) bool) TableOption[T] {
	return func(t *tableWriter[T]) { t.orderBy = less }
}

// NewTableWriter returns a writer that buffers values and prints them as a
// table when closed. Columns are the exported fields of T, named after their
// "text" struct tag; fields tagged "-" are skipped.
func NewTableWriter[T any](w io.Writer, opts ...TableOption[T]) stream.WriteCloser[T] {
	t := &tableWriter[T]{
		output: w,
		header: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tableWriter[T any] struct {
	output  io.Writer
	values  []T
	header  bool
	list    bool
	orderBy func(T, T) bool
}

func (t *tableWriter[T]) Write(values []T) (int, error) {
	t.values = append(t.values, values...)
	return len(values), nil
}

func (t *tableWriter[T]) Close() error {
	tw := tabwriter.NewWriter(t.output, 0, 4, 2, ' ', 0)

	if t.orderBy != nil {
		slices.SortStableFunc(t.values, t.orderBy)
	}

	valueOf := func(values []T, index int) reflect.Value {
		return reflect.ValueOf(&values[index]).Elem()
	}

	var v T
	valueType := reflect.TypeOf(v)
	if valueType.Kind() == reflect.Pointer {
		valueType = valueType.Elem()
		valueOf = func(values []T, index int) reflect.Value {
			return reflect.ValueOf(values[index]).Elem()
		}
	}

	var columns []string
	var encoders []encodeFunc
	for _, f := range reflect.VisibleFields(valueType) {
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if textTag := f.Tag.Get("text"); textTag != "" {
			name, _, _ = strings.Cut(textTag, ",")
		}
		if name == "-" {
			continue
		}
		columns = append(columns, name)
		encoders = append(encoders, encodeFuncOfStructField(f.Type, f.Index))
	}

	if t.list {
		columns = columns[:1]
		encoders = encoders[:1]
	}

	if t.header {
		if _, err := io.WriteString(tw, strings.Join(columns, "\t")+"\n"); err != nil {
			return err
		}
	}

	for n := range t.values {
		v := valueOf(t.values, n)

		for i, enc := range encoders {
			if i != 0 {
				if _, err := io.WriteString(tw, "\t"); err != nil {
					return err
				}
			}
			if err := enc(tw, v); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(tw, "\n"); err != nil {
			return err
		}
	}

	return tw.Flush()
}
