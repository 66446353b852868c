// internal/pool/pool.go
package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// The collector downloads and inflates one log object after another, so
// the download buffer and the gzip reader are hot on every object. Both
// are pooled to keep allocation flat across a run over many objects.

var (
	// BufferPool holds buffers for object bodies. Initial capacity 256KB;
	// raw exports are typically a few hundred KB once inflated.
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	// GzipReaderPool reuses gzip readers across objects via Reset.
	GzipReaderPool = sync.Pool{
		New: func() any { return new(gzip.Reader) },
	}
)

// MaxBufferCap caps buffers returned to the pool. Larger ones are left to
// the GC so one oversized object does not pin memory for the whole run.
const MaxBufferCap = 8 * 1024 * 1024

// PutBuffer returns buf to the pool unless it grew past MaxBufferCap.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
