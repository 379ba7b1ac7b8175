package sim

import (
	"sync"

	"github.com/san-kum/sphsim/internal/sph"
)

// Shared serializes access to a State that is stepped by one goroutine
// and read by others, such as a renderer or a stream server.
type Shared struct {
	mu sync.Mutex
	st *sph.State
}

func NewShared(st *sph.State) *Shared {
	return &Shared{st: st}
}

// Step advances one frame's worth of timesteps. Once the state has
// diverged it returns an ErrUnstable SimError and no longer moves.
func (s *Shared) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return advance(s.st, s.st.Params().StepsPerFrame)
}

func (s *Shared) Advance(k int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return advance(s.st, k)
}

func (s *Shared) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Reset()
}

// Read runs fn with exclusive access. fn must not retain st.
func (s *Shared) Read(fn func(st *sph.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Snapshot copies the flat buffer into dst, growing it when needed, and
// returns the filled slice with the step count it was taken at.
func (s *Shared) Snapshot(dst []float64) ([]float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.st.Flat())
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	copy(dst, s.st.Flat())
	return dst, s.st.Steps()
}

// Swap replaces the underlying State, for parameter changes that need a
// fresh layout.
func (s *Shared) Swap(st *sph.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
}
