//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package sigblock locates and rewrites the APK Signing Block, the
// length-prefixed ID/value container that sits between the last ZIP entry
// and the central directory.
//
// https://source.android.com/security/apksigning/v2#apk-signing-block
package sigblock

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

const (
	MagicLo = 0x20676953204b5041 // "APK Sig "
	MagicHi = 0x3234206b636f6c42 // "Block 42"

	// MinSize is the size of a block holding no pairs: two size fields and
	// the magic.
	MinSize = 32
	// FooterSize is the trailing size field plus the magic.
	FooterSize = 24

	sizeFieldLen  = 8
	pairHeaderLen = 12
)

// Well-known pair IDs
const (
	// SchemeV2ID holds the APK Signature Scheme v2 signers. Its value is
	// opaque and passed through byte-for-byte.
	SchemeV2ID uint32 = 0x7109871a
	// SchemeV3ID holds the APK Signature Scheme v3 signers.
	SchemeV3ID uint32 = 0xf05368c0
	// PaddingID pads the block to a 4096 byte boundary for verity. It may
	// be dropped at any time.
	PaddingID uint32 = 0x42726577
	// ChannelID holds the distribution channel payload.
	ChannelID uint32 = 0x71777777
)

var idNames = map[uint32]string{
	SchemeV2ID: "v2-signature",
	SchemeV3ID: "v3-signature",
	PaddingID:  "verity-padding",
	ChannelID:  "channel",
}

// IDName returns a descriptive name for a well-known pair ID, or its hex
// value.
func IDName(id uint32) string {
	if name := idNames[id]; name != "" {
		return name
	}
	return fmt.Sprintf("0x%08x", id)
}

// Block is a signing block read from an archive
type Block struct {
	// Offset is the file offset of the first byte of the block
	Offset int64
	// Raw is the entire block, including both size fields and the magic
	Raw []byte
}

// Size returns the total length of the block in bytes
func (b *Block) Size() int64 {
	return int64(len(b.Raw))
}

// End returns the file offset just past the block, which is where the
// central directory starts.
func (b *Block) End() int64 {
	return b.Offset + int64(len(b.Raw))
}

// Locate reads the signing block that immediately precedes the central
// directory at dirOffset.
func Locate(r io.ReaderAt, dirOffset int64) (*Block, error) {
	if dirOffset < MinSize {
		return nil, fmt.Errorf("%w: central directory starts at %d, need at least %d bytes before it", sigerrors.ErrContainerTooSmall, dirOffset, MinSize)
	}
	var footer [FooterSize]byte
	if _, err := r.ReadAt(footer[:], dirOffset-FooterSize); err != nil {
		return nil, sigerrors.IO(fmt.Sprintf("reading signing block footer at %d", dirOffset-FooterSize), err)
	}
	lo := binary.LittleEndian.Uint64(footer[8:])
	hi := binary.LittleEndian.Uint64(footer[16:])
	if lo != MagicLo || hi != MagicHi {
		return nil, fmt.Errorf("%w: no magic before central directory at %d", sigerrors.ErrContainerNotFound, dirOffset)
	}
	footerSize := binary.LittleEndian.Uint64(footer[:])
	if footerSize < FooterSize || footerSize > uint64(dirOffset) {
		return nil, fmt.Errorf("%w: footer declares size %d but central directory starts at %d", sigerrors.ErrContainerNotFound, footerSize, dirOffset)
	}
	blockSize := int64(footerSize) + sizeFieldLen
	offset := dirOffset - blockSize
	if offset < 0 {
		return nil, fmt.Errorf("%w: block of %d bytes would start at %d", sigerrors.ErrContainerNotFound, blockSize, offset)
	}
	raw := make([]byte, blockSize)
	if _, err := r.ReadAt(raw, offset); err != nil {
		return nil, sigerrors.IO(fmt.Sprintf("reading %d byte signing block at %d", blockSize, offset), err)
	}
	headerSize := binary.LittleEndian.Uint64(raw)
	if headerSize != footerSize {
		return nil, fmt.Errorf("%w: header at %d says %d, footer at %d says %d", sigerrors.ErrSizeMismatch, offset, headerSize, dirOffset-FooterSize, footerSize)
	}
	return &Block{Offset: offset, Raw: raw}, nil
}

// Pairs decodes the ID/value sequence of the block
func (b *Block) Pairs() (*Pairs, error) {
	return Decode(b.Raw)
}
