package audio

import (
	"bytes"
	"errors"
	"sync"
)

var errPipeClosed = errors.New("pcm pipe closed")

// pcmPipe bridges callback-driven backends and the blocking Read/Write calls
// of endpoints. The callback side (push/pull) never blocks; the stream side
// (Read/Write) blocks until data or space is available or the pipe is closed.
type pcmPipe struct {
	mtx      sync.Mutex
	cond     *sync.Cond
	buf      bytes.Buffer
	capacity int
	closed   bool
}

func newPCMPipe(capacity int) *pcmPipe {
	p := &pcmPipe{capacity: capacity}
	p.buf.Grow(capacity)
	p.cond = sync.NewCond(&p.mtx)
	return p
}

// push appends captured data. When the pipe is full the oldest data is
// dropped.
func (p *pcmPipe) push(b []byte) {
	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		return
	}
	if len(b) > p.capacity {
		b = b[len(b)-p.capacity:]
	}
	if excess := p.buf.Len() + len(b) - p.capacity; excess > 0 {
		p.buf.Next(excess)
	}
	p.buf.Write(b)
	p.cond.Broadcast()
	p.mtx.Unlock()
}

// pull fills out with queued data, padding with silence when not enough data
// is queued. Returns the number of bytes that came from the queue.
func (p *pcmPipe) pull(out []byte) int {
	p.mtx.Lock()
	n, _ := p.buf.Read(out)
	clear(out[n:])
	p.cond.Broadcast()
	p.mtx.Unlock()
	return n
}

// Read blocks until some data is queued, then reads up to len(b) bytes.
func (p *pcmPipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()
	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return 0, errPipeClosed
	}
	n, _ := p.buf.Read(b)
	p.cond.Broadcast()
	return n, nil
}

// Write blocks until all of b has been queued.
func (p *pcmPipe) Write(b []byte) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var n int
	for len(b) > 0 {
		for p.buf.Len() >= p.capacity && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			return n, errPipeClosed
		}
		chunk := min(p.capacity-p.buf.Len(), len(b))
		p.buf.Write(b[:chunk])
		n += chunk
		b = b[chunk:]
		p.cond.Broadcast()
	}
	return n, nil
}

// reset discards all queued data.
func (p *pcmPipe) reset() {
	p.mtx.Lock()
	p.buf.Reset()
	p.cond.Broadcast()
	p.mtx.Unlock()
}

// close unblocks every pending and future Read and Write.
func (p *pcmPipe) close() {
	p.mtx.Lock()
	p.closed = true
	p.buf.Reset()
	p.cond.Broadcast()
	p.mtx.Unlock()
}
