package sim

import "sync"

// BufferPool recycles flat-buffer snapshots of a fixed length.
type BufferPool struct {
	pool sync.Pool
	size int
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				buf := make([]float64, size)
				return &buf
			},
		},
	}
}

func (p *BufferPool) Get() []float64 {
	return *p.pool.Get().(*[]float64)
}

// Put returns buf to the pool. Buffers of the wrong length are dropped.
func (p *BufferPool) Put(buf []float64) {
	if len(buf) != p.size {
		return
	}
	p.pool.Put(&buf)
}
