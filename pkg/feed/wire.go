// Package feed ingests producer audio streams into a playout.Player.
//
// Producers reach the engine three ways: a websocket carrying JSON
// control messages and either base64 or binary audio frames (Server,
// Client), plain RTP over UDP for firmware that cannot speak websocket
// (RTPIngest), and direct in-process enqueues (the CLI's play path).
// All of them funnel into the same Player operations, so admission and
// ordering rules are identical regardless of transport.
package feed

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/encoding"
	"github.com/loroworks/loro/go/pkg/jsontime"
)

var (
	// ErrUnknownRate is returned for sample rates outside the supported set.
	ErrUnknownRate = errors.New("feed: unknown sample rate")

	// ErrBadFrame is returned for binary frames that do not parse.
	ErrBadFrame = errors.New("feed: bad binary frame")
)

// MessageType enumerates feed wire messages.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessageHello
	MessageChunk
	MessageCue
	MessageComplete
	MessageClear
	MessageClearAll
)

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageHello:
		return "hello"
	case MessageChunk:
		return "chunk"
	case MessageCue:
		return "cue"
	case MessageComplete:
		return "complete"
	case MessageClear:
		return "clear"
	case MessageClearAll:
		return "clear_all"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (mt MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(mt.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (mt *MessageType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "hello":
		*mt = MessageHello
	case "chunk":
		*mt = MessageChunk
	case "cue":
		*mt = MessageCue
	case "complete":
		*mt = MessageComplete
	case "clear":
		*mt = MessageClear
	case "clear_all":
		*mt = MessageClearAll
	default:
		*mt = MessageUnknown
	}
	return nil
}

// Message is one feed wire frame, sent as a websocket text message.
//
// Hello opens a connection and fixes the producer's sample rate; chunks
// may override it per message. A chunk with Last set completes its
// request after the enqueue. A cue names a clip in the engine's sound
// bank instead of carrying audio; a zero Volume plays it unscaled.
type Message struct {
	Type      MessageType     `json:"type"`
	ConnectID string          `json:"connect_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Index     int             `json:"index,omitempty"`
	Rate      int             `json:"rate,omitempty"`
	Audio     encoding.Base64 `json:"audio,omitempty"`
	Name      string          `json:"name,omitempty"`
	Volume    float64         `json:"volume,omitempty"`
	Last      bool            `json:"last,omitempty"`
	SentAt    jsontime.Milli  `json:"sent_at,omitzero"`
}

// FormatForRate maps a wire sample rate to its pcm format.
func FormatForRate(rate int) (pcm.Format, error) {
	switch rate {
	case 16000:
		return pcm.L16Mono16K, nil
	case 24000:
		return pcm.L16Mono24K, nil
	case 48000:
		return pcm.L16Mono48K, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownRate, rate)
	}
}

// Binary chunk frames avoid the base64 expansion of JSON chunks. Layout,
// all integers big-endian:
//
//	byte 0     version (high nibble) | frame type (low nibble)
//	byte 1     rate code
//	uint32     chunk index
//	uint16+n   request id
//	uint16+n   message id
//	byte       flags (bit 0: last)
//	rest       little-endian samples
const (
	frameVersion  = 0x1
	frameChunk    = 0x1
	frameFlagLast = 0x01
)

func rateCode(f pcm.Format) byte {
	switch f {
	case pcm.L16Mono16K:
		return 0
	case pcm.L16Mono24K:
		return 1
	case pcm.L16Mono48K:
		return 2
	}
	panic("feed: invalid audio format")
}

func formatForCode(code byte) (pcm.Format, error) {
	switch code {
	case 0:
		return pcm.L16Mono16K, nil
	case 1:
		return pcm.L16Mono24K, nil
	case 2:
		return pcm.L16Mono48K, nil
	default:
		return 0, fmt.Errorf("%w: rate code %d", ErrBadFrame, code)
	}
}

// ChunkFrame is a decoded binary chunk frame.
type ChunkFrame struct {
	RequestID string
	MessageID string
	Index     int
	Format    pcm.Format
	Last      bool
	Samples   []byte
}

// MarshalChunkFrame encodes a binary chunk frame.
func MarshalChunkFrame(f *ChunkFrame) ([]byte, error) {
	if len(f.RequestID) > 0xffff || len(f.MessageID) > 0xffff {
		return nil, fmt.Errorf("%w: id too long", ErrBadFrame)
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(frameVersion<<4 | frameChunk)
	buf.WriteByte(rateCode(f.Format))
	binary.Write(buf, binary.BigEndian, uint32(f.Index))
	binary.Write(buf, binary.BigEndian, uint16(len(f.RequestID)))
	buf.WriteString(f.RequestID)
	binary.Write(buf, binary.BigEndian, uint16(len(f.MessageID)))
	buf.WriteString(f.MessageID)
	var flags byte
	if f.Last {
		flags |= frameFlagLast
	}
	buf.WriteByte(flags)
	buf.Write(f.Samples)
	return buf.Bytes(), nil
}

// UnmarshalChunkFrame decodes a binary chunk frame. The returned samples
// alias data.
func UnmarshalChunkFrame(data []byte) (*ChunkFrame, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadFrame, len(data))
	}
	if data[0]>>4 != frameVersion || data[0]&0x0f != frameChunk {
		return nil, fmt.Errorf("%w: header 0x%02x", ErrBadFrame, data[0])
	}
	format, err := formatForCode(data[1])
	if err != nil {
		return nil, err
	}
	rest := data[2:]
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: truncated index", ErrBadFrame)
	}
	index := binary.BigEndian.Uint32(rest)
	rest = rest[4:]

	requestID, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	messageID, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("%w: truncated flags", ErrBadFrame)
	}
	flags := rest[0]
	return &ChunkFrame{
		RequestID: requestID,
		MessageID: messageID,
		Index:     int(index),
		Format:    format,
		Last:      flags&frameFlagLast != 0,
		Samples:   rest[1:],
	}, nil
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("%w: truncated string length", ErrBadFrame)
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, fmt.Errorf("%w: truncated string", ErrBadFrame)
	}
	return string(data[:n]), data[n:], nil
}
