package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDGenerator returns predictable version-7 shaped UUIDs.
//
// The namespace occupies the first two bytes and a counter the last four,
// so generators with different namespaces never collide:
//
//	gen := NewSequentialIDGenerator(0xa)
//	gen.NewID() // 000a0000-0000-7000-8000-000000000001
//	gen.NewID() // 000a0000-0000-7000-8000-000000000002
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu        sync.Mutex
	namespace uint16
	n         uint32
}

// NewSequentialIDGenerator creates a generator for the given namespace.
func NewSequentialIDGenerator(namespace uint16) *SequentialIDGenerator {
	return &SequentialIDGenerator{namespace: namespace}
}

// NewID returns the next id in the sequence.
func (g *SequentialIDGenerator) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return sequentialID(g.namespace, g.n)
}

func sequentialID(namespace uint16, n uint32) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint16(id[0:2], namespace)
	id[6] = 0x70
	id[8] = 0x80
	binary.BigEndian.PutUint32(id[12:16], n)
	return id
}

// DeviceID returns a fixed device id for simulated device number n:
// 00000000-0000-4000-8000-0000000000nn.
func DeviceID(n uint8) uuid.UUID {
	var id uuid.UUID
	id[6] = 0x40
	id[8] = 0x80
	id[15] = n
	return id
}
