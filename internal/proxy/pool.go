package proxy

import (
	"sync"
)

// chunkPool recycles fixed-size relay buffers.
type chunkPool struct {
	size int
	pool sync.Pool
}

func newChunkPool(size int) *chunkPool {
	if size <= 0 {
		size = DefaultRelayBuffer
	}
	p := &chunkPool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return p
}

func (p *chunkPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *chunkPool) Put(b *[]byte) {
	if len(*b) != p.size {
		return
	}
	p.pool.Put(b)
}

var (
	poolsMu sync.Mutex
	pools   = map[int]*chunkPool{}
)

// poolFor returns the shared pool for chunks of size bytes.
func poolFor(size int) *chunkPool {
	if size <= 0 {
		size = DefaultRelayBuffer
	}

	poolsMu.Lock()
	defer poolsMu.Unlock()

	p, ok := pools[size]
	if !ok {
		p = newChunkPool(size)
		pools[size] = p
	}
	return p
}
