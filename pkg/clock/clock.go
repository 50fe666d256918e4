// Package clock provides the kernel's only visible time source: a
// virtual monotonic millisecond clock. The pipeline never calls
// time.Now() directly — doing so would make two otherwise-identical
// kernels produce different receipts and ledger hashes whenever their
// wall clocks drift, which would break the determinism property (spec
// §8 item 5).
package clock

import "sync"

// Clock returns the current virtual time in milliseconds.
type Clock interface {
	NowMS() int64
}

// Fixed is a clock that always returns the same instant. Useful for
// tests and for replaying a request stream with a pinned schedule.
type Fixed int64

func (f Fixed) NowMS() int64 { return int64(f) }

// Monotonic is a clock that starts at a base and advances by a fixed
// step on every call, guaranteeing strictly increasing timestamps
// without depending on the host's wall clock. This is the clock a
// production kernel boots with by default.
type Monotonic struct {
	mu   sync.Mutex
	next int64
	step int64
}

// NewMonotonic returns a Monotonic clock whose first NowMS() call
// returns base, advancing by step on every subsequent call.
func NewMonotonic(base, step int64) *Monotonic {
	if step <= 0 {
		step = 1
	}
	return &Monotonic{next: base, step: step}
}

func (m *Monotonic) NowMS() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.next
	m.next += m.step
	return now
}

// Scripted replays a fixed, pre-recorded sequence of timestamps —
// exactly what a byte-for-byte determinism check (spec §8 item 5)
// requires: two kernels given the same scripted schedule must see the
// same ts_ms on every call, regardless of how much wall-clock time
// actually elapsed between them.
type Scripted struct {
	mu  sync.Mutex
	seq []int64
	pos int
}

// NewScripted returns a Scripted clock that replays seq in order, then
// repeats the last value if called more times than len(seq).
func NewScripted(seq []int64) *Scripted {
	cp := make([]int64, len(seq))
	copy(cp, seq)
	return &Scripted{seq: cp}
}

func (s *Scripted) NowMS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seq) == 0 {
		return 0
	}
	if s.pos >= len(s.seq) {
		return s.seq[len(s.seq)-1]
	}
	v := s.seq[s.pos]
	s.pos++
	return v
}
