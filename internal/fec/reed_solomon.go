package fec

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ShardCodec spreads a message over fixed-size Reed-Solomon shards, one
// per SS/PBCH block, so a burst survives the loss of up to ParityShards
// blocks.
type ShardCodec struct {
	enc        reedsolomon.Encoder
	dataShards int
	parShards  int
}

// NewShardCodec creates a codec with the given shard counts.
func NewShardCodec(dataShards, parityShards int) (*ShardCodec, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("create reed-solomon encoder: %w", err)
	}
	return &ShardCodec{
		enc:        enc,
		dataShards: dataShards,
		parShards:  parityShards,
	}, nil
}

// Capacity returns the largest message Encode accepts for shardSize.
func (c *ShardCodec) Capacity(shardSize int) int { return c.dataShards * shardSize }

// Encode zero-pads msg to DataShards*shardSize bytes and returns the data
// shards followed by the parity shards.
func (c *ShardCodec) Encode(msg []byte, shardSize int) ([][]byte, error) {
	if shardSize < 1 {
		return nil, fmt.Errorf("invalid shard size %d", shardSize)
	}
	if len(msg) > c.Capacity(shardSize) {
		return nil, fmt.Errorf("message too large: %d > %d", len(msg), c.Capacity(shardSize))
	}

	shards := make([][]byte, c.dataShards+c.parShards)
	for i := range shards {
		shards[i] = make([]byte, shardSize)
		if i < c.dataShards && i*shardSize < len(msg) {
			copy(shards[i], msg[i*shardSize:])
		}
	}

	if err := c.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return shards, nil
}

// Decode rebuilds missing shards (nil entries) and returns the first size
// message bytes.
func (c *ShardCodec) Decode(shards [][]byte, size int) ([]byte, error) {
	if len(shards) != c.dataShards+c.parShards {
		return nil, fmt.Errorf("invalid shard count: %d != %d", len(shards), c.dataShards+c.parShards)
	}

	if err := c.enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	ok, err := c.enc.Verify(shards)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("verification failed: data may be corrupted beyond repair")
	}

	var buf bytes.Buffer
	if err := c.enc.Join(&buf, shards, size); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return buf.Bytes(), nil
}

// DataShards returns the number of data shards.
func (c *ShardCodec) DataShards() int { return c.dataShards }

// ParityShards returns the number of parity shards.
func (c *ShardCodec) ParityShards() int { return c.parShards }
