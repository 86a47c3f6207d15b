// Package buffer provides pooled byte buffers sized for goroutine stack dumps.
package buffer

import "sync"

// DefaultSize is the initial size of buffers, enough to hold the stacks of a
// few hundred goroutines.
const DefaultSize = 64 * 1024

const pageSize = 4096

type Buffer struct{ Data []byte }

func (buf *Buffer) Size() int {
	return len(buf.Data)
}

// Grow doubles the size of the buffer. The previous content is discarded.
func (buf *Buffer) Grow() {
	buf.Data = make([]byte, 2*len(buf.Data))
}

// Pool retains buffers between uses. Buffers which were grown keep their
// capacity so that later dumps of a similar size do not grow again.
type Pool struct{ pool sync.Pool }

// Get returns a buffer of at least size bytes, extended to its full capacity.
func (p *Pool) Get(size int) *Buffer {
	b, _ := p.pool.Get().(*Buffer)
	if b != nil {
		if size <= cap(b.Data) {
			b.Data = b.Data[:cap(b.Data)]
			return b
		}
		p.Put(b)
	}
	return New(size)
}

func (p *Pool) Put(b *Buffer) {
	if b != nil {
		p.pool.Put(b)
	}
}

func New(size int) *Buffer {
	return &Buffer{Data: make([]byte, Align(size, pageSize))}
}

// Release returns *buf to pool and clears the pointer.
func Release(buf **Buffer, pool *Pool) {
	if b := *buf; b != nil {
		*buf = nil
		pool.Put(b)
	}
}

func Align(size, to int) int {
	return ((size + (to - 1)) / to) * to
}
