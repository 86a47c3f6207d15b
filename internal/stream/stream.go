// Package stream is a library of generic types designed to work on streams of
// values.
package stream

import "io"

// Writer is an interface implemented by types that consume a stream of
// values of type T.
type Writer[T any] interface {
	// Writes values to the stream, returning the number of values written and
	// any error that occurred.
	Write(values []T) (int, error)
}

// WriteCloser represents a closable stream of values of T.
//
// WriteClosers are like io.WriteCloser for values of any type. Implementations
// may buffer the values until Close is called.
type WriteCloser[T any] interface {
	Writer[T]
	io.Closer
}

// WriteAll writes values to w and closes it.
func WriteAll[T any](w WriteCloser[T], values ...T) error {
	if _, err := w.Write(values); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
