// Package id generates the sortable identifiers used in logs, traces and
// websocket clients.
//
// Identifiers are ULIDs with a short type prefix (req_*, span_*, client_*)
// so a log line tells you what kind of thing it refers to.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one HTTP request or trace
type RequestID string

// SpanID identifies one traced operation
type SpanID string

// ClientID identifies one websocket connection
type ClientID string

const (
	RequestPrefix = "req"
	SpanPrefix    = "span"
	ClientPrefix  = "client"
)

// Generator produces monotonic ULIDs
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// IDs minted within the same millisecond stay ordered.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a "prefix_ULID" string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.GenerateString()
}

func NewRequestID() RequestID { return RequestID(Default().GenerateWithPrefix(RequestPrefix)) }
func NewSpanID() SpanID       { return SpanID(Default().GenerateWithPrefix(SpanPrefix)) }
func NewClientID() ClientID   { return ClientID(Default().GenerateWithPrefix(ClientPrefix)) }

func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
func (id ClientID) String() string  { return string(id) }

// IsValid reports whether s is a bare ULID
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Split separates a prefixed ID into its prefix and ULID part
func Split(s string) (prefix string, value string, ok bool) {
	prefix, value, ok = strings.Cut(s, "_")
	if !ok || !IsValid(value) {
		return "", "", false
	}
	return prefix, value, true
}

// Timestamp extracts the creation time from a bare or prefixed ID
func Timestamp(s string) (time.Time, error) {
	if _, v, ok := Split(s); ok {
		s = v
	}
	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
