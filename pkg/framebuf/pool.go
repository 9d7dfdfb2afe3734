// Package framebuf manages the BGR buffers handed to callers.
package framebuf

import (
	"errors"
	"fmt"
	"sync"
)

// Policy selects how frame buffers are owned.
type Policy int

const (
	// Owned gives every frame its own buffer. The caller may keep it as long
	// as it likes and hands it back with Frame.Release.
	Owned Policy = iota
	// Borrowed reuses one buffer. A frame is only valid until the next
	// Acquire or Close.
	Borrowed
)

func (p Policy) String() string {
	switch p {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "owned":
		return Owned, nil
	case "borrowed":
		return Borrowed, nil
	default:
		return Owned, fmt.Errorf("framebuf: unknown buffer policy %q", s)
	}
}

// DefaultFreeBuffers is the free list bound used when NewPool gets zero.
const DefaultFreeBuffers = 4

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("framebuf: pool closed")

// Stats counts buffer traffic.
type Stats struct {
	Allocated   int
	Reused      int
	Outstanding int
}

// Pool hands out frames of one size class at a time. Buffers whose size does
// not match the request are discarded.
type Pool struct {
	policy  Policy
	maxFree int

	mu       sync.Mutex
	free     [][]byte
	scratch  []byte
	borrowed *Frame
	stats    Stats
	closed   bool
}

// NewPool creates a pool. maxFree bounds the owned-policy free list.
func NewPool(policy Policy, maxFree int) *Pool {
	if maxFree <= 0 {
		maxFree = DefaultFreeBuffers
	}
	return &Pool{policy: policy, maxFree: maxFree}
}

// Policy returns the pool's ownership policy.
func (p *Pool) Policy() Policy {
	return p.policy
}

// Acquire returns a frame with a width*height*3 byte buffer. Under the
// Borrowed policy the previously acquired frame is invalidated.
func (p *Pool) Acquire(width, height int) (*Frame, error) {
	size := width * height * 3
	if size <= 0 {
		return nil, fmt.Errorf("framebuf: invalid frame size %dx%d", width, height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	if p.policy == Borrowed {
		if p.borrowed != nil {
			p.borrowed.invalidate()
		}
		if cap(p.scratch) < size {
			p.scratch = make([]byte, size)
			p.stats.Allocated++
		} else {
			p.stats.Reused++
		}
		p.borrowed = newFrame(p.scratch[:size], width, height, nil)
		return p.borrowed, nil
	}

	var buf []byte
	for len(p.free) > 0 && buf == nil {
		last := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		if len(last) == size {
			buf = last
		}
	}
	if buf == nil {
		buf = make([]byte, size)
		p.stats.Allocated++
	} else {
		p.stats.Reused++
	}
	p.stats.Outstanding++
	return newFrame(buf, width, height, p), nil
}

// put returns an owned buffer to the free list.
func (p *Pool) put(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Outstanding--
	if p.closed || len(p.free) >= p.maxFree {
		return
	}
	p.free = append(p.free, buf)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close drops the free list and invalidates the borrowed frame. Owned frames
// already handed out stay valid.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.free = nil
	if p.borrowed != nil {
		p.borrowed.invalidate()
		p.borrowed = nil
	}
	p.scratch = nil
}
