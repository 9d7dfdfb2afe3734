package mocks

import (
	"io"

	"github.com/user/framecap/pkg/ports"
)

// Demuxer is a mock implementation of ports.Demuxer. Without Func overrides
// it returns Desc from Open and then replays Packets.
type Demuxer struct {
	OpenFunc       func(path string) (ports.StreamDescriptor, error)
	NextPacketFunc func() (ports.Packet, error)
	CloseFunc      func() error

	Desc    ports.StreamDescriptor
	Packets []ports.Packet

	OpenCalls  []string
	CloseCalls int
	next       int
}

func (m *Demuxer) Open(path string) (ports.StreamDescriptor, error) {
	m.OpenCalls = append(m.OpenCalls, path)
	m.next = 0
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	return m.Desc, nil
}

func (m *Demuxer) NextPacket() (ports.Packet, error) {
	if m.NextPacketFunc != nil {
		return m.NextPacketFunc()
	}
	if m.next >= len(m.Packets) {
		return ports.Packet{}, io.EOF
	}
	pkt := m.Packets[m.next]
	m.next++
	return pkt, nil
}

func (m *Demuxer) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.Demuxer = (*Demuxer)(nil)
