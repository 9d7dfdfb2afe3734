package capture

import (
	"iter"

	"github.com/user/framecap/pkg/framebuf"
)

// Cursor is a pull iterator over a session's remaining frames.
//
//	cur := session.Cursor()
//	for cur.Next() {
//		use(cur.Frame())
//	}
//	if err := cur.Err(); err != nil { ... }
//
// Exhausting a cursor does not close the session.
type Cursor struct {
	s     *Session
	frame *framebuf.Frame
}

// Cursor returns a cursor starting at the session's next frame.
func (s *Session) Cursor() *Cursor {
	return &Cursor{s: s}
}

// Next reads the next frame and reports whether there was one.
func (c *Cursor) Next() bool {
	frame, ok := c.s.Read()
	c.frame = frame
	return ok
}

// Frame returns the frame read by the last successful Next.
func (c *Cursor) Frame() *framebuf.Frame {
	return c.frame
}

// Err returns the session's fatal decode error, if any.
func (c *Cursor) Err() error {
	return c.s.Err()
}

// All yields the remaining frames with their index. It stops at the end of
// the stream, on a fatal error (check Err afterwards) or when the loop body
// breaks. The session stays open.
func (s *Session) All() iter.Seq2[int, *framebuf.Frame] {
	return func(yield func(int, *framebuf.Frame) bool) {
		for {
			frame, ok := s.Read()
			if !ok {
				return
			}
			if !yield(frame.Index, frame) {
				return
			}
		}
	}
}
