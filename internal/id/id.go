// Package id hands out identifiers: ULIDs for runs and live orders, and
// plain sequences where a run must be reproducible.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator seeds the ULID entropy with seed. IDs generated within the
// same millisecond stay lexicographically increasing.
func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     now,
	}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		// only when the clock runs backwards past the monotonic window
		panic(err)
	}
	return id.String()
}

var std *Generator

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	std = NewGenerator(seed, nil)
}

// New returns a time-sortable ULID string from the process generator.
func New() string { return std.New() }

// Sequence yields Prefix000001, Prefix000002, ... It is not safe for
// concurrent use.
type Sequence struct {
	Prefix string
	n      int
}

func (s *Sequence) Next() string {
	s.n++
	return fmt.Sprintf("%s%06d", s.Prefix, s.n)
}

// Count is the number of IDs handed out so far.
func (s *Sequence) Count() int { return s.n }
