// Package cache memoises subclass edge lookups for the lifetime of a process.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/ppiankov/wikiner/internal/model"
)

// Cache stores the related classes returned for one frontier
type Cache interface {
	Get(key Key) ([]model.ClassID, bool)
	Put(key Key, related []model.ClassID)
	Flush()
}

// Key identifies a lookup: the relation direction and the frontier as a set
type Key string

// NewKey hashes the sorted, deduplicated frontier so that the same set asked
// in another order maps to the same entry
func NewKey(direction string, frontier []model.ClassID) Key {
	ids := slices.Clone(frontier)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	h := sha256.New()
	h.Write([]byte(direction))
	h.Write([]byte{0})
	var buf [8]byte
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[:], uint64(id))
		h.Write(buf[:])
	}
	return Key("edges:" + direction + ":" + hex.EncodeToString(h.Sum(nil)[:16]))
}
