package certformat

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces unique element identifiers
type IDGenerator func() string

// UUIDGenerator returns a generator of random v4 UUID strings
func UUIDGenerator() IDGenerator {
	return func() string {
		return uuid.New().String()
	}
}

// SequenceGenerator returns a deterministic generator yielding prefix-1, prefix-2, ...
func SequenceGenerator(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
