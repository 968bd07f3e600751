package router

import (
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/interledger/relay-connector/internal/ilp"
)

// Partition selects which bytes of a Prepare are hashed to place the
// request in [0.0, 1.0] for weighted route selection (§4.4.2).
type Partition int

const (
	PartitionDestination Partition = iota
	PartitionExecutionCondition
)

// position hashes the selected bytes of p into [0.0, 1.0] using a stable
// 64-bit hash (xxhash), matching the original's destination/condition
// selection but with Go's ecosystem hash instead of Rust's DefaultHasher —
// any deterministic 64-bit hash satisfies the "stable hash" requirement.
func (part Partition) position(p *ilp.Prepare) float64 {
	var h uint64
	switch part {
	case PartitionExecutionCondition:
		h = xxhash.Sum64(p.ExecutionCondition[:])
	default:
		h = xxhash.Sum64([]byte(p.Destination))
	}
	return float64(h) / float64(math.MaxUint64)
}
