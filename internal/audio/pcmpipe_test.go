package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/companyzero/uvcloop/internal/assert"
)

// TestPCMPipeCapture asserts the capture side of the pipe: pushes never block
// and drop the oldest data, reads block until data is available.
func TestPCMPipeCapture(t *testing.T) {
	t.Parallel()

	p := newPCMPipe(8)
	readChan := make(chan []byte, 1)
	go func() {
		b := make([]byte, 16)
		n, err := p.Read(b)
		if err != nil {
			t.Error(err)
		}
		readChan <- b[:n]
	}()
	assert.ChanNotWritten(t, readChan, 50*time.Millisecond)

	p.push([]byte{1, 2, 3})
	assert.DeepEqual(t, assert.ChanWritten(t, readChan), []byte{1, 2, 3})

	// Overflow drops the oldest bytes.
	assert.DoesNotBlock(t, func() {
		p.push([]byte{1, 2, 3, 4, 5, 6})
		p.push([]byte{7, 8, 9, 10})
	})
	b := make([]byte, 16)
	n, err := p.Read(b)
	assert.NilErr(t, err)
	assert.DeepEqual(t, b[:n], []byte{3, 4, 5, 6, 7, 8, 9, 10})

	// Pushing more than the capacity keeps the newest bytes.
	p.push(bytes.Repeat([]byte{0xaa}, 4))
	p.push([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	n, err = p.Read(b)
	assert.NilErr(t, err)
	assert.DeepEqual(t, b[:n], []byte{3, 4, 5, 6, 7, 8, 9, 10})
}

// TestPCMPipePlayback asserts the playback side of the pipe: writes block
// while the pipe is full and pulls pad missing data with silence.
func TestPCMPipePlayback(t *testing.T) {
	t.Parallel()

	p := newPCMPipe(4)
	writeDone := make(chan int, 1)
	go func() {
		n, err := p.Write([]byte{1, 2, 3, 4, 5, 6})
		if err != nil {
			t.Error(err)
		}
		writeDone <- n
	}()
	assert.ChanNotWritten(t, writeDone, 50*time.Millisecond)

	out := make([]byte, 4)
	assert.DeepEqual(t, p.pull(out), 4)
	assert.DeepEqual(t, out, []byte{1, 2, 3, 4})
	assert.DeepEqual(t, assert.ChanWritten(t, writeDone), 6)

	out = []byte{0xff, 0xff, 0xff, 0xff}
	assert.DeepEqual(t, p.pull(out), 2)
	assert.DeepEqual(t, out, []byte{5, 6, 0, 0})
}

// TestPCMPipeClose asserts that closing the pipe unblocks readers and
// writers.
func TestPCMPipeClose(t *testing.T) {
	t.Parallel()

	rp := newPCMPipe(2)
	readErr := make(chan error, 1)
	go func() {
		_, err := rp.Read(make([]byte, 2))
		readErr <- err
	}()
	assert.ChanNotWritten(t, readErr, 50*time.Millisecond)
	rp.close()
	assert.ErrorIs(t, assert.ChanWritten(t, readErr), errPipeClosed)

	p := newPCMPipe(2)
	writeErr := make(chan error, 1)
	go func() {
		_, err := p.Write([]byte{1, 2, 3, 4})
		writeErr <- err
	}()
	assert.ChanNotWritten(t, writeErr, 50*time.Millisecond)
	p.close()
	assert.ErrorIs(t, assert.ChanWritten(t, writeErr), errPipeClosed)

	_, err := p.Read(make([]byte, 2))
	assert.ErrorIs(t, err, errPipeClosed)
	p.push([]byte{1})
	out := []byte{1, 1}
	assert.DeepEqual(t, p.pull(out), 0)
	assert.DeepEqual(t, out, []byte{0, 0})
}

func TestPCMPipeReset(t *testing.T) {
	t.Parallel()

	p := newPCMPipe(4)
	p.push([]byte{1, 2})
	p.reset()
	out := []byte{9, 9}
	assert.DeepEqual(t, p.pull(out), 0)
	assert.DeepEqual(t, out, []byte{0, 0})
}
