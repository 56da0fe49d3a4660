package protocol

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/fec"
	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Burst splits messages across the L_max blocks of an SS/PBCH burst.
type Burst struct {
	codec  *fec.ShardCodec
	lMax   int
	parity int
}

// NewBurst creates a burst layout with parity of the lMax blocks spent on
// Reed-Solomon parity. With no parity blocks the codec still keeps one
// parity shard that is never transmitted.
func NewBurst(lMax, parity int) (*Burst, error) {
	if lMax < 1 || lMax > 255 {
		return nil, fmt.Errorf("%w: L_max %d", nr.ErrInvalidConfig, lMax)
	}
	if parity < 0 || parity >= lMax {
		return nil, fmt.Errorf("%w: %d parity blocks of %d", nr.ErrInvalidConfig, parity, lMax)
	}
	codec, err := fec.NewShardCodec(lMax-parity, max(parity, 1))
	if err != nil {
		return nil, err
	}
	return &Burst{codec: codec, lMax: lMax, parity: parity}, nil
}

// Capacity returns the largest message one burst carries.
func (b *Burst) Capacity() int {
	return min(b.codec.Capacity(ShardSize), 0xFFFF)
}

// Pack encodes msg into the concatenated 864-bit payloads of all lMax
// blocks, ready for ssb.BuildGrid.
func (b *Burst) Pack(msgID byte, msg []byte) ([]byte, error) {
	if len(msg) > b.Capacity() {
		return nil, fmt.Errorf("message too large: %d > %d", len(msg), b.Capacity())
	}
	shards, err := b.codec.Encode(msg, ShardSize)
	if err != nil {
		return nil, fmt.Errorf("encode shards: %w", err)
	}

	bits := make([]byte, 0, b.lMax*nr.PBCHPayloadLen)
	for i := 0; i < b.lMax; i++ {
		f := &Frame{
			Type:         TypeData,
			MsgID:        msgID,
			Index:        byte(i),
			DataShards:   byte(b.lMax - b.parity),
			ParityShards: byte(b.parity),
			MsgLen:       uint16(len(msg)),
			Shard:        shards[i],
		}
		if i >= b.lMax-b.parity {
			f.Type = TypeParity
		}
		bits = append(bits, FrameToBits(f)...)
	}
	return bits, nil
}

// Reassembler collects frames of one message as blocks are decoded.
type Reassembler struct {
	msgID  byte
	frames map[byte]*Frame
	done   bool
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{frames: make(map[byte]*Frame)}
}

// Add decodes one block payload. It returns the message once enough shards
// have arrived; payloads failing the CRC are reported and ignored. A frame
// with a new message ID discards the frames collected so far.
func (r *Reassembler) Add(bits []byte) ([]byte, bool, error) {
	f, err := BitsToFrame(bits)
	if err != nil {
		return nil, false, fmt.Errorf("decode frame: %w", err)
	}

	if len(r.frames) > 0 && f.MsgID != r.msgID {
		r.frames = make(map[byte]*Frame)
		r.done = false
	}
	r.msgID = f.MsgID
	r.frames[f.Index] = f

	if r.done || len(r.frames) < int(f.DataShards) {
		return nil, false, nil
	}

	msg, err := r.assemble(f)
	if err != nil {
		return nil, false, err
	}
	r.done = true
	return msg, true, nil
}

func (r *Reassembler) assemble(ref *Frame) ([]byte, error) {
	parity := int(ref.ParityShards)
	burst, err := NewBurst(int(ref.DataShards)+parity, parity)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, burst.codec.DataShards()+burst.codec.ParityShards())
	for idx, f := range r.frames {
		if f.DataShards != ref.DataShards || f.ParityShards != ref.ParityShards || f.MsgLen != ref.MsgLen {
			return nil, fmt.Errorf("frame %d disagrees on message layout", idx)
		}
		shards[idx] = f.Shard
	}
	msg, err := burst.codec.Decode(shards, int(ref.MsgLen))
	if err != nil {
		return nil, fmt.Errorf("decode message %d: %w", ref.MsgID, err)
	}
	return msg, nil
}

// Unpack reassembles a message from the payloads of one burst in block
// order. Missing blocks are nil.
func Unpack(payloads [][]byte) ([]byte, error) {
	r := NewReassembler()
	for _, bits := range payloads {
		if bits == nil {
			continue
		}
		msg, ok, err := r.Add(bits)
		if err != nil {
			continue
		}
		if ok {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("not enough valid blocks to rebuild the message")
}
