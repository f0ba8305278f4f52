package supply

import (
	"context"
	"sync"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
)

// LiveCache is the streaming cache between live extraction and the
// analysis pipeline: a single-producer/single-consumer FIFO that lets rep
// counting run while extraction is still producing.
//
// Backpressure policy: the consumer never blocks the producer. Append
// always returns immediately; if the consumer falls behind, frames
// accumulate in arrival order and are drained in order. No frame skipping,
// no reordering.
//
// Terminal states: CloseExhausted drains remaining frames and then ends
// the stream; Cancel either flushes buffered frames first or discards them
// and surfaces ErrCancelled immediately.
type LiveCache struct {
	mu     sync.Mutex
	buf    []pose.Frame
	head   int
	done   bool
	endErr error

	id Identity

	// notify wakes a blocked consumer; capacity 1 so Append never blocks.
	notify chan struct{}
}

// NewLiveCache creates an empty cache for the given stream identity.
func NewLiveCache(id Identity) *LiveCache {
	return &LiveCache{
		id:     id,
		notify: make(chan struct{}, 1),
	}
}

// Append enqueues a frame. Non-blocking; frames appended after the cache
// has been closed are dropped.
func (c *LiveCache) Append(f pose.Frame) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.buf = append(c.buf, f)
	c.mu.Unlock()
	c.wake()
}

// CloseExhausted marks the producer finished. Buffered frames remain
// drainable; once empty, Next returns ErrEndOfStream.
func (c *LiveCache) CloseExhausted() {
	c.close(ErrEndOfStream, false)
}

// Cancel ends the stream early. With flush=true remaining buffered frames
// are delivered before Next reports ErrCancelled; with flush=false they
// are discarded and the very next call reports it.
func (c *LiveCache) Cancel(flush bool) {
	c.close(ErrCancelled, !flush)
}

// Fail ends the stream with a producer error, discarding buffered frames.
func (c *LiveCache) Fail(err error) {
	c.close(err, true)
}

func (c *LiveCache) close(endErr error, discard bool) {
	c.mu.Lock()
	if !c.done {
		c.done = true
		c.endErr = endErr
		if discard {
			c.buf = nil
			c.head = 0
		}
	}
	c.mu.Unlock()
	c.wake()
}

func (c *LiveCache) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a frame is buffered, the stream ends, or ctx is done.
func (c *LiveCache) Next(ctx context.Context) (pose.Frame, error) {
	for {
		c.mu.Lock()
		if c.head < len(c.buf) {
			f := c.buf[c.head]
			c.head++
			if c.head == len(c.buf) {
				// Reset instead of growing forever.
				c.buf = c.buf[:0]
				c.head = 0
			}
			c.mu.Unlock()
			return f, nil
		}
		if c.done {
			err := c.endErr
			c.mu.Unlock()
			return pose.Frame{}, err
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return pose.Frame{}, ctx.Err()
		case <-c.notify:
		}
	}
}

// Identity returns the stream identity supplied at construction.
func (c *LiveCache) Identity() Identity { return c.id }

// Depth returns the number of frames currently buffered.
func (c *LiveCache) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) - c.head
}

// Close implements Source; equivalent to a discarding Cancel.
func (c *LiveCache) Close() error {
	c.Cancel(false)
	return nil
}
