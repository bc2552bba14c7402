// Package ticketnumber produces human-facing ticket numbers.
//
// Numbers have the form SUP-<YYYYMMDD>-<NNNN> where the date is the UTC
// calendar day of generation and NNNN is uniform in [1000, 9999]. The
// generator does not guarantee uniqueness; the creation path checks the store
// and retries on collision.
package ticketnumber

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	Prefix    = "SUP"
	minRandom = 1000
	maxRandom = 9999
)

var pattern = regexp.MustCompile(`^SUP-\d{8}-\d{4}$`)

// Generator defines the contract for ticket number generators.
type Generator interface {
	Next() string
}

// Clock returns the current time. time.Now satisfies it.
type Clock func() time.Time

// DateRandom is the default generator.
type DateRandom struct {
	mu    sync.Mutex
	clock Clock
	src   *mrand.Rand
}

// NewDateRandom builds a generator. A zero seed draws one from crypto/rand;
// a nil clock uses time.Now.
func NewDateRandom(clock Clock, seed int64) *DateRandom {
	if clock == nil {
		clock = time.Now
	}
	if seed == 0 {
		var b [8]byte
		_, _ = rand.Read(b[:])
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return &DateRandom{clock: clock, src: mrand.New(mrand.NewSource(seed))}
}

// Next returns a fresh candidate number.
func (g *DateRandom) Next() string {
	day := g.clock().UTC().Format("20060102")
	g.mu.Lock()
	n := minRandom + g.src.Intn(maxRandom-minRandom+1)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", Prefix, day, n)
}

// Normalize converts user input to the canonical stored form.
func Normalize(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// Valid reports whether number is in canonical form.
func Valid(number string) bool {
	return pattern.MatchString(number)
}
