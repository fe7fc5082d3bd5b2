package sigblock_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/apkchannel/internal/apktest"
	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
	"github.com/sassoftware/apkchannel/lib/zipslicer"
)

func locate(t *testing.T, blob []byte) (*sigblock.Block, error) {
	t.Helper()
	r := bytes.NewReader(blob)
	end, err := zipslicer.FindEndRecord(r, int64(len(blob)))
	require.NoError(t, err)
	return sigblock.Locate(r, end.DirOffset)
}

func TestLocate(t *testing.T) {
	sig := apktest.SignaturePair()
	blob := apktest.Build(t, apktest.Options{
		Comment: "comment",
		Pairs:   []sigblock.Pair{sig, {ID: 0x1234, Value: []byte("other")}},
	})
	block, err := locate(t, blob)
	require.NoError(t, err)
	assert.Equal(t, int64(sigblock.MinSize+12+len(sig.Value)+12+5), block.Size())
	assert.Equal(t, blob[block.Offset:block.End()], block.Raw)
	p, err := block.Pairs()
	require.NoError(t, err)
	assert.Equal(t, []uint32{sigblock.SchemeV2ID, 0x1234}, p.IDs())
	v, _ := p.Get(sigblock.SchemeV2ID)
	assert.Equal(t, sig.Value, v)
}

func TestLocateMissing(t *testing.T) {
	blob := apktest.Build(t, apktest.Options{NoBlock: true})
	_, err := locate(t, blob)
	assert.ErrorIs(t, err, sigerrors.ErrContainerNotFound)
}

func TestLocateTooSmall(t *testing.T) {
	blob := make([]byte, 64)
	_, err := sigblock.Locate(bytes.NewReader(blob), 31)
	assert.ErrorIs(t, err, sigerrors.ErrContainerTooSmall)
}

func TestLocateSizeMismatch(t *testing.T) {
	blob := apktest.Build(t, apktest.Options{})
	block, err := locate(t, blob)
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(blob[block.Offset:], 12345)
	_, err = locate(t, blob)
	assert.ErrorIs(t, err, sigerrors.ErrSizeMismatch)
}

func TestLocateBadFooterSize(t *testing.T) {
	blob := apktest.Build(t, apktest.Options{})
	block, err := locate(t, blob)
	require.NoError(t, err)
	footer := block.End() - sigblock.FooterSize
	for _, size := range []uint64{0, 23, uint64(block.End()), 1 << 62} {
		binary.LittleEndian.PutUint64(blob[footer:], size)
		_, err = locate(t, blob)
		assert.ErrorIs(t, err, sigerrors.ErrContainerNotFound, "size %d", size)
	}
}
