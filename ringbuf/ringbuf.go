// Package ringbuf is the seam between an external audio producer and the
// detection pipeline: a minimal Reader interface the pipeline consumes, plus
// a concrete wait-free single-producer/single-consumer byte ring for
// embedders (and this module's own tests and CLI tools) that don't bring
// their own.
package ringbuf

import (
	"encoding/binary"
	"math"
	"math/bits"
	"sync/atomic"
)

const bytesPerSample = 4 // sizeof(float32)

// Reader is what the detection pipeline consumes: readable byte count, a
// contiguous view over the next n bytes, and a way to release bytes back to
// the producer. Implementations must tolerate being called from a single
// consumer goroutine only; the producer side is not exposed here.
type Reader interface {
	FillCount() int
	View(n int) []byte
	Advance(n int)
}

// Float32Reader adapts a Reader's byte view into a typed []float32 view,
// the "typed view over f32 samples" the detection pipeline actually wants.
type Float32Reader struct {
	r Reader
}

// NewFloat32Reader wraps r.
func NewFloat32Reader(r Reader) *Float32Reader {
	return &Float32Reader{r: r}
}

// FillCount returns the number of whole float32 samples available.
func (f *Float32Reader) FillCount() int {
	return f.r.FillCount() / bytesPerSample
}

// ViewFloat32 returns a contiguous view of the next n samples.
func (f *Float32Reader) ViewFloat32(n int) []float32 {
	raw := f.r.View(n * bytesPerSample)
	out := make([]float32, n)
	for i := range out {
		bits32 := binary.LittleEndian.Uint32(raw[i*bytesPerSample:])
		out[i] = math.Float32frombits(bits32)
	}
	return out
}

// Advance releases n samples back to the producer.
func (f *Float32Reader) Advance(n int) {
	f.r.Advance(n * bytesPerSample)
}

// WriteFloat32 is a convenience for producers writing to an *SPSC directly:
// it encodes samples as little-endian float32 and writes them in one call.
func WriteFloat32(s *SPSC, samples []float32) bool {
	raw := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*bytesPerSample:], math.Float32bits(v))
	}
	return s.Write(raw)
}

// SPSC is a wait-free single-producer/single-consumer byte ring with a
// power-of-two capacity fixed at construction. Write is intended to run
// inside a realtime audio callback: it never blocks, never allocates, and
// drops the incoming chunk if there isn't room rather than overwrite unread
// data. Read-side methods (FillCount/View/Advance) are for the single
// analyzer goroutine.
type SPSC struct {
	buf  []byte
	mask uint64

	writePos atomic.Uint64 // published with release ordering by Write
	readPos  atomic.Uint64 // published with release ordering by Advance

	scratch []byte // grows on demand, used only when a view wraps
}

// NewSPSC returns a ring with capacity rounded up to the next power of two.
func NewSPSC(capacity int) *SPSC {
	if capacity < 1 {
		capacity = 1
	}
	c := 1 << bits.Len(uint(capacity-1))
	return &SPSC{
		buf:  make([]byte, c),
		mask: uint64(c - 1),
	}
}

// Write appends p to the ring. It reports false (and writes nothing) if p
// would not fit in the currently free space.
func (s *SPSC) Write(p []byte) bool {
	read := s.readPos.Load() // acquire: see the consumer's latest progress
	write := s.writePos.Load()
	free := uint64(len(s.buf)) - (write - read)
	if uint64(len(p)) > free {
		return false
	}

	off := write & s.mask
	n := copy(s.buf[off:], p)
	if n < len(p) {
		copy(s.buf[0:], p[n:])
	}

	s.writePos.Store(write + uint64(len(p))) // release: publish the new data
	return true
}

// FillCount returns the number of unread bytes.
func (s *SPSC) FillCount() int {
	write := s.writePos.Load() // acquire: see the producer's latest data
	read := s.readPos.Load()
	return int(write - read)
}

// View returns a contiguous slice of the next n unread bytes. If the
// requested region wraps past the end of the physical buffer, it is copied
// into a reusable scratch slice; otherwise it aliases the ring directly.
func (s *SPSC) View(n int) []byte {
	read := s.readPos.Load()
	off := read & s.mask
	if off+uint64(n) <= uint64(len(s.buf)) {
		return s.buf[off : off+uint64(n)]
	}

	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	s.scratch = s.scratch[:n]
	first := copy(s.scratch, s.buf[off:])
	copy(s.scratch[first:], s.buf[:n-first])
	return s.scratch
}

// Advance releases n bytes back to the producer.
func (s *SPSC) Advance(n int) {
	read := s.readPos.Load()
	s.readPos.Store(read + uint64(n)) // release: publish freed space
}
