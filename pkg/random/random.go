// Package random provides the injectable randomness used for RSA padding and session keys
package random

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// Source supplies uniform values in [0,1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Default returns the process-wide source.
//
// NOTE: this is NOT a cryptographically secure generator. The router's own web UI
// pads and derives its AES key/IV from an equivalent source.
func Default() Source { return globalSource{} }

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeeded returns a deterministic source (for tests and reproducible captures).
// It is safe for concurrent use.
func NewSeeded(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Digits returns n decimal digits drawn from src.
func Digits(src Source, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteString(strconv.Itoa(int(src.Float64() * 10)))
	}
	return sb.String()
}
