package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
)

// Packet type codes (spec §6 "Packet framing").
const (
	TypeUserInput     byte = 1
	TypeSystemMessage byte = 2
	TypeChatMessage   byte = 3
	TypeBoardUpdate   byte = 4
	TypeGameState     byte = 5
	TypeError         byte = 6
	TypeAck           byte = 7
)

const (
	packetHeaderLen   = 5 // seq(2) + type(1) + payload_len(2)
	packetChecksumLen = 1
	maxPayloadLen     = 1 << 16
)

func kindToType(k Kind) byte {
	switch k {
	case KindInput:
		return TypeUserInput
	case KindSystem:
		return TypeSystemMessage
	case KindChat:
		return TypeChatMessage
	case KindBoard:
		return TypeBoardUpdate
	case KindGameState:
		return TypeGameState
	case KindError:
		return TypeError
	case KindAck:
		return TypeAck
	default:
		return TypeSystemMessage
	}
}

func typeToKind(t byte) Kind {
	switch t {
	case TypeUserInput:
		return KindInput
	case TypeChatMessage:
		return KindChat
	case TypeBoardUpdate:
		return KindBoard
	case TypeGameState:
		return KindGameState
	case TypeError:
		return KindError
	case TypeAck:
		return KindAck
	default:
		return KindSystem
	}
}

// checksum is the additive checksum over every byte preceding it:
// sum(all bytes before checksum) mod 256.
func checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return sum
}

// EncodePacket serializes one packet frame:
// seq(2) | type(1) | payload_len(2) | payload | checksum(1), big-endian.
func EncodePacket(seq uint16, typ byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadLen-1 {
		return nil, fmt.Errorf("encoding packet: payload too large (%d bytes)", len(payload))
	}
	buf := make([]byte, packetHeaderLen+len(payload)+packetChecksumLen)
	binary.BigEndian.PutUint16(buf[0:2], seq)
	buf[2] = typ
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(payload)))
	copy(buf[packetHeaderLen:], payload)
	buf[len(buf)-1] = checksum(buf[:len(buf)-1])
	return buf, nil
}

// DecodePacket parses one packet frame previously produced by
// EncodePacket (or an on-wire equivalent), validating its checksum.
func DecodePacket(data []byte) (seq uint16, typ byte, payload []byte, err error) {
	if len(data) < packetHeaderLen+packetChecksumLen {
		return 0, 0, nil, &DecodeError{Reason: "packet shorter than header+checksum"}
	}

	seq = binary.BigEndian.Uint16(data[0:2])
	typ = data[2]
	payloadLen := int(binary.BigEndian.Uint16(data[3:5]))

	want := packetHeaderLen + payloadLen + packetChecksumLen
	if len(data) != want {
		return 0, 0, nil, &DecodeError{Reason: fmt.Sprintf("length mismatch: header declares %d, frame is %d bytes", want, len(data))}
	}

	body := data[:len(data)-1]
	gotChecksum := data[len(data)-1]
	if checksum(body) != gotChecksum {
		return 0, 0, nil, &DecodeError{Reason: "checksum mismatch"}
	}

	payload = make([]byte, payloadLen)
	copy(payload, data[packetHeaderLen:packetHeaderLen+payloadLen])
	return seq, typ, payload, nil
}

// PacketCodec is the optional alternate framing: a length-prefixed
// envelope with a trailing 1-byte additive checksum. A checksum
// mismatch yields a single DecodeError and does not terminate the
// session (spec §4.2, §6).
type PacketCodec struct {
	r      io.Reader
	w      io.Writer
	outSeq atomic.Uint32
}

// NewPacketCodec wraps a connection's reader and writer halves.
func NewPacketCodec(r io.Reader, w io.Writer) *PacketCodec {
	return &PacketCodec{r: r, w: w}
}

// ReadFrame reads and validates one packet frame. A checksum or
// malformed-frame condition is surfaced as a *DecodeError; the caller
// may continue reading subsequent frames on the same connection.
func (c *PacketCodec) ReadFrame() (Kind, string, error) {
	var header [packetHeaderLen]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return 0, "", err
	}
	payloadLen := int(binary.BigEndian.Uint16(header[3:5]))
	if payloadLen > maxPayloadLen {
		return 0, "", &DecodeError{Reason: "payload_len exceeds maximum"}
	}

	rest := make([]byte, payloadLen+packetChecksumLen)
	if _, err := io.ReadFull(c.r, rest); err != nil {
		return 0, "", err
	}

	frame := append(header[:], rest...)
	_, typ, payload, err := DecodePacket(frame)
	if err != nil {
		return 0, "", err
	}
	return typeToKind(typ), string(payload), nil
}

// WriteFrame encodes and sends one packet frame with the next
// outbound sequence number. KindBoard payloads, like every other kind,
// are written in a single Write call, preserving the no-torn-grid
// guarantee across framings.
func (c *PacketCodec) WriteFrame(kind Kind, payload string) error {
	seq := uint16(c.outSeq.Add(1))
	buf, err := EncodePacket(seq, kindToType(kind), []byte(payload))
	if err != nil {
		return err
	}
	if _, err := c.w.Write(buf); err != nil {
		return fmt.Errorf("writing packet frame: %w", err)
	}
	return nil
}
