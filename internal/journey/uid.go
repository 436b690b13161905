package journey

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
)

// UIDSource chooses a virtual user identity per journey invocation, per the
// configured mode (spec.md §3).
type UIDSource struct {
	mode    string
	fixed   string
	pattern string
	pool    []string
}

// NewUIDSource builds a source for the given mode. For pool mode, poolSize
// identities are pre-generated from pattern (or a UUID fallback when no
// pattern is configured).
func NewUIDSource(mode, fixed, pattern string, poolSize int) *UIDSource {
	s := &UIDSource{mode: mode, fixed: fixed, pattern: pattern}
	if mode == "pool" {
		s.pool = make([]string, poolSize)
		for i := range s.pool {
			s.pool[i] = s.generate()
		}
	}
	return s
}

// Next returns the uid to use for the next journey invocation.
func (s *UIDSource) Next() string {
	switch s.mode {
	case "fixed":
		return s.fixed
	case "pool":
		if len(s.pool) == 0 {
			return s.generate()
		}
		return s.pool[rand.IntN(len(s.pool))]
	default: // "random"
		return s.generate()
	}
}

func (s *UIDSource) generate() string {
	if s.pattern != "" {
		if v, err := reggen.Generate(s.pattern, 10); err == nil {
			return v
		}
	}
	return fmt.Sprintf("u-%s", uuid.NewString()[:12])
}
