package sigblock_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

func rawPair(id uint32, value []byte) []byte {
	b := binary.LittleEndian.AppendUint64(nil, uint64(4+len(value)))
	b = binary.LittleEndian.AppendUint32(b, id)
	return append(b, value...)
}

func rawBlock(pairs ...[]byte) []byte {
	body := bytes.Join(pairs, nil)
	size := uint64(len(body) + sigblock.FooterSize)
	b := binary.LittleEndian.AppendUint64(nil, size)
	b = append(b, body...)
	b = binary.LittleEndian.AppendUint64(b, size)
	b = binary.LittleEndian.AppendUint64(b, sigblock.MagicLo)
	return binary.LittleEndian.AppendUint64(b, sigblock.MagicHi)
}

func TestEncode(t *testing.T) {
	p := sigblock.NewPairs()
	p.Set(sigblock.SchemeV2ID, []byte("signature"))
	p.Set(0x1234, []byte{})
	p.Set(sigblock.ChannelID, []byte(`{"channel":"x"}`))
	blob := sigblock.Encode(p)
	expected := rawBlock(
		rawPair(sigblock.SchemeV2ID, []byte("signature")),
		rawPair(0x1234, nil),
		rawPair(sigblock.ChannelID, []byte(`{"channel":"x"}`)),
	)
	assert.Equal(t, expected, blob)
	assert.Equal(t, int64(len(blob)), p.EncodedSize())
	assert.True(t, bytes.HasSuffix(blob, []byte("APK Sig Block 42")))
	// both size fields exclude the leading one
	assert.Equal(t, uint64(len(blob)-8), binary.LittleEndian.Uint64(blob))
	assert.Equal(t, uint64(len(blob)-8), binary.LittleEndian.Uint64(blob[len(blob)-24:]))
}

func TestEncodeEmpty(t *testing.T) {
	blob := sigblock.Encode(sigblock.NewPairs())
	assert.Len(t, blob, sigblock.MinSize)
	p, err := sigblock.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
}

func TestDecode(t *testing.T) {
	sig := bytes.Repeat([]byte{0xa5}, 100)
	blob := rawBlock(
		rawPair(sigblock.SchemeV2ID, sig),
		rawPair(sigblock.PaddingID, make([]byte, 20)),
		rawPair(0xdeadbeef, []byte("x")),
	)
	p, err := sigblock.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []uint32{sigblock.SchemeV2ID, sigblock.PaddingID, 0xdeadbeef}, p.IDs())
	v, ok := p.Get(sigblock.SchemeV2ID)
	require.True(t, ok)
	assert.Equal(t, sig, v)
	// decoded values do not alias the input
	blob[20] = 0
	v, _ = p.Get(sigblock.SchemeV2ID)
	assert.Equal(t, sig, v)
	// re-encoding reproduces the input exactly
	blob[20] = 0xa5
	assert.Equal(t, blob, sigblock.Encode(p))
}

func TestDecodeDuplicate(t *testing.T) {
	blob := rawBlock(
		rawPair(sigblock.ChannelID, []byte("first")),
		rawPair(sigblock.SchemeV2ID, []byte("sig")),
		rawPair(sigblock.ChannelID, []byte("second")),
	)
	p, err := sigblock.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []uint32{sigblock.ChannelID, sigblock.SchemeV2ID}, p.IDs())
	v, _ := p.Get(sigblock.ChannelID)
	assert.Equal(t, "second", string(v))
}

func TestDecodeCorrupt(t *testing.T) {
	good := rawPair(sigblock.SchemeV2ID, []byte("signature"))
	overlong := rawPair(sigblock.SchemeV2ID, []byte("signature"))
	binary.LittleEndian.PutUint64(overlong, 100)
	tooShort := rawPair(sigblock.SchemeV2ID, nil)
	binary.LittleEndian.PutUint64(tooShort, 3)
	huge := rawPair(sigblock.SchemeV2ID, nil)
	binary.LittleEndian.PutUint64(huge, 1<<63)
	cases := []struct {
		Case string
		Blob []byte
	}{
		{"Short", make([]byte, 31)},
		{"Overlong", rawBlock(good, overlong)},
		{"LengthBelowID", rawBlock(tooShort)},
		{"Huge", rawBlock(huge)},
		{"TruncatedHeader", rawBlock(good, []byte{1, 2, 3, 4, 5})},
	}
	for _, c := range cases {
		t.Run(c.Case, func(t *testing.T) {
			_, err := sigblock.Decode(c.Blob)
			assert.ErrorIs(t, err, sigerrors.ErrContainerCorrupt)
		})
	}
}

func TestPairs(t *testing.T) {
	p := sigblock.NewPairs()
	assert.False(t, p.Set(1, []byte("a")))
	assert.False(t, p.Set(2, []byte("b")))
	assert.False(t, p.Set(3, []byte("c")))
	assert.True(t, p.Set(2, []byte("bb")))
	assert.Equal(t, []uint32{1, 2, 3}, p.IDs())
	assert.True(t, p.Delete(1))
	assert.False(t, p.Delete(1))
	assert.False(t, p.Has(1))
	assert.Equal(t, []uint32{2, 3}, p.IDs())
	// index is still consistent after the removal shifted entries
	v, ok := p.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", string(v))
	assert.True(t, p.Set(3, []byte("cc")))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, int64(sigblock.MinSize+12+2+12+2), p.EncodedSize())
}

func TestIDName(t *testing.T) {
	assert.Equal(t, "channel", sigblock.IDName(sigblock.ChannelID))
	assert.Equal(t, "v2-signature", sigblock.IDName(sigblock.SchemeV2ID))
	assert.Equal(t, "0x00001234", sigblock.IDName(0x1234))
}
