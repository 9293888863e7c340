package manifest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	idLength      = 24
	maxIDAttempts = 64
)

// IDGenerator produces candidate object identifiers. Candidates that collide
// with an identifier already in the manifest are discarded.
type IDGenerator interface {
	Next() string
}

// IDGeneratorFunc adapts a function to IDGenerator
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) Next() string { return f() }

type uuidGenerator struct{}

// NewUUIDGenerator returns the default generator: 24 uppercase hex digits from a random UUID
func NewUUIDGenerator() IDGenerator { return uuidGenerator{} }

func (uuidGenerator) Next() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return hex[:idLength]
}

// WithIDGenerator returns a copy of m that uses gen for new identifiers
func (m *Manifest) WithIDGenerator(gen IDGenerator) *Manifest {
	cp := *m
	if gen == nil {
		gen = NewUUIDGenerator()
	}
	cp.gen = gen
	return &cp
}

// newID returns an identifier unused in the manifest and not in reserved
func (m *Manifest) newID(reserved map[string]bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := m.gen.Next()
		if !validID(id) {
			continue
		}
		if m.ids[id] || reserved[id] {
			continue
		}
		if reserved != nil {
			reserved[id] = true
		}
		return id, nil
	}
	return "", fmt.Errorf("no unique identifier after %d attempts", maxIDAttempts)
}

func validID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
