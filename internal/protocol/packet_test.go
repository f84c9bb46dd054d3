package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePacket_RoundTrip(t *testing.T) {
	payload := []byte("A5 fired")
	buf, err := EncodePacket(42, TypeUserInput, payload)
	require.NoError(t, err)

	seq, typ, got, err := DecodePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), seq)
	assert.Equal(t, TypeUserInput, typ)
	assert.Equal(t, payload, got)
}

func TestDecodePacket_ChecksumMismatchDetected(t *testing.T) {
	buf, err := EncodePacket(1, TypeChatMessage, []byte("hello"))
	require.NoError(t, err)

	// Flip a bit in the payload region; the checksum must no longer match.
	corrupt := bytes.Clone(buf)
	corrupt[packetHeaderLen] ^= 0xFF

	_, _, _, err = DecodePacket(corrupt)
	require.Error(t, err)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestDecodePacket_ShortFrameRejected(t *testing.T) {
	_, _, _, err := DecodePacket([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPacketCodec_WriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	codec := NewPacketCodec(&buf, &buf)

	require.NoError(t, codec.WriteFrame(KindChat, "[CHAT] Player alice: gg"))

	kind, payload, err := codec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindChat, kind)
	assert.Equal(t, "[CHAT] Player alice: gg", payload)
}

func TestPacketCodec_DecodeErrorDoesNotDesyncOnCleanNextFrame(t *testing.T) {
	var buf bytes.Buffer
	codec := NewPacketCodec(&buf, &buf)

	// Write one frame with a corrupted payload byte, then one well-formed frame.
	bad, err := EncodePacket(1, TypeChatMessage, []byte("hello"))
	require.NoError(t, err)
	bad[packetHeaderLen] ^= 0xFF
	buf.Write(bad)
	require.NoError(t, codec.WriteFrame(KindSystem, "welcome"))

	_, _, err = codec.ReadFrame()
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr, "the corrupted frame must surface as a DecodeError")

	kind, payload, err := codec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindSystem, kind)
	assert.Equal(t, "welcome", payload)
}

// A single bit flip anywhere in the non-checksum region must always be
// detected (spec §8 "documented limitation").
func TestChecksum_SingleBitFlipAlwaysDetected(t *testing.T) {
	buf, err := EncodePacket(7, TypeBoardUpdate, []byte("GRID body"))
	require.NoError(t, err)

	for i := 0; i < len(buf)-1; i++ { // exclude the checksum byte itself
		for bit := 0; bit < 8; bit++ {
			corrupt := bytes.Clone(buf)
			corrupt[i] ^= 1 << bit
			_, _, _, err := DecodePacket(corrupt)
			assert.Error(t, err, "byte %d bit %d should have been detected", i, bit)
		}
	}
}
