// Package ids implements the process-local identifier type shared by the
// player and room registries, and its wire encoding.
package ids

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// IdType is a process-local, machine-word-wide unsigned integer. Identifiers
// are randomly generated and never persisted across restarts.
type IdType uint64

// byteWidth is the full width of IdType's big-endian wire representation.
const byteWidth = 8

// Set is the allocator's view of "who already owns an id" — the coordinator
// passes its player or room registry in directly rather than maintaining a
// parallel id index.
type Set interface {
	// Has reports whether id is already in use.
	Has(id IdType) bool
}

// mapSet adapts a plain map to Set without requiring callers to wrap it.
type mapSet[V any] map[IdType]V

func (m mapSet[V]) Has(id IdType) bool {
	_, ok := m[id]
	return ok
}

// FromMap adapts a map[IdType]V to Set for use with Generate.
func FromMap[V any](m map[IdType]V) Set {
	return mapSet[V](m)
}

// Generate draws a random, non-zero IdType and rejects it if it collides
// with an existing entry in taken. Zero is never returned so that it can be
// reserved by callers as a "no id" sentinel if needed.
func Generate(taken Set) IdType {
	for {
		id := IdType(randUint64())
		if id == 0 {
			continue
		}
		if !taken.Has(id) {
			return id
		}
	}
}

func randUint64() uint64 {
	var buf [byteWidth]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is a fatal platform error, not a case the
		// coordinator can recover from.
		panic(fmt.Sprintf("ids: crypto/rand unavailable: %v", err))
	}
	return binary.BigEndian.Uint64(buf[:])
}

// SerId is the wire form of an IdType: the big-endian byte representation,
// base64 encoded with standard padding, fixed width.
func SerId(id IdType) string {
	var buf [byteWidth]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return base64.StdEncoding.EncodeToString(buf[:])
}

// ParseSerId decodes the wire form produced by SerId. It rejects any input
// whose decoded length is not exactly byteWidth.
func ParseSerId(s string) (IdType, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("ids: invalid base64: %w", err)
	}
	if len(raw) != byteWidth {
		return 0, fmt.Errorf("ids: decoded length %d, want %d", len(raw), byteWidth)
	}
	return IdType(binary.BigEndian.Uint64(raw)), nil
}

// MarshalJSON encodes an IdType as its SerId string form, so any struct
// field of type IdType serializes the way the wire protocol expects without
// callers needing to remember to call SerId explicitly.
func (id IdType) MarshalJSON() ([]byte, error) {
	return json.Marshal(SerId(id))
}

// UnmarshalJSON decodes a SerId string form into an IdType.
func (id *IdType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSerId(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
