// Package protocol carries an arbitrary byte message over the PBCH
// payloads of one SS/PBCH burst. Each block carries one Reed-Solomon
// shard in a CRC-protected frame, so the message survives lost blocks.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/fec"
	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Frame types
const (
	TypeData   byte = 0x01
	TypeParity byte = 0x02
)

// Frame size limits
const (
	FrameSize  = nr.PBCHPayloadLen / 8 // one PBCH payload
	HeaderSize = 7
	CRCSize    = 3
	ShardSize  = FrameSize - HeaderSize - CRCSize
)

// Frame is one shard of a message.
// Format: [Type(1B)][MsgID(1B)][Index(1B)][DataShards(1B)][ParityShards(1B)][MsgLen(2B)][Shard][CRC-24C(3B)]
type Frame struct {
	Type         byte
	MsgID        byte
	Index        byte
	DataShards   byte
	ParityShards byte
	MsgLen       uint16
	Shard        []byte // ShardSize bytes
}

// TypeName returns a human-readable name for the frame type.
func (f *Frame) TypeName() string {
	switch f.Type {
	case TypeData:
		return "DATA"
	case TypeParity:
		return "PARITY"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", f.Type)
	}
}

// Encode serializes the frame to FrameSize bytes with CRC-24C.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameSize-CRCSize)

	buf[0] = f.Type
	buf[1] = f.MsgID
	buf[2] = f.Index
	buf[3] = f.DataShards
	buf[4] = f.ParityShards
	binary.BigEndian.PutUint16(buf[5:7], f.MsgLen)
	copy(buf[HeaderSize:], f.Shard)

	return fec.AppendCRC24C(buf)
}

// DecodeFrame deserializes bytes into a Frame, verifying CRC-24C.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) != FrameSize {
		return nil, fmt.Errorf("frame size %d bytes, want %d", len(data), FrameSize)
	}

	body, ok := fec.VerifyCRC24C(data)
	if !ok {
		return nil, fmt.Errorf("CRC mismatch")
	}

	f := &Frame{
		Type:         body[0],
		MsgID:        body[1],
		Index:        body[2],
		DataShards:   body[3],
		ParityShards: body[4],
		MsgLen:       binary.BigEndian.Uint16(body[5:7]),
		Shard:        make([]byte, ShardSize),
	}
	copy(f.Shard, body[HeaderSize:])

	if f.Type != TypeData && f.Type != TypeParity {
		return nil, fmt.Errorf("unknown frame type 0x%02x", f.Type)
	}
	if f.DataShards == 0 || int(f.Index) >= int(f.DataShards)+int(f.ParityShards) {
		return nil, fmt.Errorf("shard %d outside %d+%d layout", f.Index, f.DataShards, f.ParityShards)
	}
	return f, nil
}

// FrameToBits converts a frame to the 864 payload bits of one block.
func FrameToBits(f *Frame) []byte {
	return modem.BytesToBits(f.Encode())
}

// BitsToFrame decodes the 864 payload bits of one block.
func BitsToFrame(bits []byte) (*Frame, error) {
	if len(bits) != nr.PBCHPayloadLen {
		return nil, fmt.Errorf("%w: payload has %d bits, want %d", nr.ErrInvalidLength, len(bits), nr.PBCHPayloadLen)
	}
	return DecodeFrame(modem.BitsToBytes(bits))
}
