package cashier

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxShardCount caps the shard table. Routing is txID-hash modulo shard
	// count, so existing slots are never removed or reordered; the table only
	// grows by append or is patched in place.
	MaxShardCount = 1024

	// MaxShardReplacementCount bounds the cost of a single administrative
	// replace call.
	MaxShardReplacementCount = 16
)

// ShardRouter maintains the ordered shard table and maps each txID to exactly
// one shard.
type ShardRouter struct {
	shards []*Shard
}

// NewShardRouter creates a router with count fresh shards.
func NewShardRouter(count int) (*ShardRouter, error) {
	if count > MaxShardCount {
		return nil, ErrShardCountExcess
	}
	r := &ShardRouter{}
	for i := 0; i < count; i++ {
		r.shards = append(r.shards, NewShard())
	}
	return r, nil
}

// Route returns the index of the shard owning txID: the low 64 bits of
// keccak256(txID) modulo the current shard count. Pure in txID and count.
func (r *ShardRouter) Route(txID TxID) (int, error) {
	if len(r.shards) == 0 {
		return 0, ErrNoShards
	}
	digest := crypto.Keccak256(txID[:])
	return int(binary.BigEndian.Uint64(digest[24:]) % uint64(len(r.shards))), nil
}

// ShardFor resolves the shard owning txID.
func (r *ShardRouter) ShardFor(txID TxID) (*Shard, error) {
	i, err := r.Route(txID)
	if err != nil {
		return nil, err
	}
	return r.shards[i], nil
}

// AddShards appends shards to the table.
func (r *ShardRouter) AddShards(shards ...*Shard) error {
	if len(r.shards)+len(shards) > MaxShardCount {
		return ErrShardCountExcess
	}
	r.shards = append(r.shards, shards...)
	return nil
}

// ReplaceShards overwrites the contiguous range starting at fromIndex with
// newShards. The range must lie within the current table and the batch must
// not exceed MaxShardReplacementCount.
func (r *ShardRouter) ReplaceShards(fromIndex int, newShards []*Shard) error {
	if len(newShards) > MaxShardReplacementCount {
		return ErrShardReplacementCountExcess
	}
	if fromIndex < 0 || fromIndex+len(newShards) > len(r.shards) {
		return ErrShardReplacementOutOfRange
	}
	copy(r.shards[fromIndex:], newShards)
	return nil
}

// ShardCount returns the current table length.
func (r *ShardRouter) ShardCount() int {
	return len(r.shards)
}

// ShardRange returns the slice [index, index+limit) of the shard table,
// clamping limit to the remaining length. Total for any index.
func (r *ShardRouter) ShardRange(index, limit int) []*Shard {
	if index < 0 || limit <= 0 || index >= len(r.shards) {
		return nil
	}
	end := index + limit
	if end > len(r.shards) {
		end = len(r.shards)
	}
	out := make([]*Shard, end-index)
	copy(out, r.shards[index:end])
	return out
}

// Shards returns the live shard table for admin propagation.
func (r *ShardRouter) Shards() []*Shard {
	return r.shards
}
