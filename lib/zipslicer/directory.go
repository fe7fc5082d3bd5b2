/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package zipslicer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

const (
	directoryEndSignature = 0x06054b50
	directoryEndLen       = 22
	// offset of the central directory offset field within the end record
	directoryEndOffsetPos = 16
	// offset of the comment length field within the end record
	directoryEndCommentPos = 20

	maxCommentLen = 0xffff
	uint32Max     = 0xffffffff
)

type zipEndRecord struct {
	Signature     uint32
	DiskNumber    uint16
	DiskCD        uint16
	DiskCDCount   uint16
	TotalCDCount  uint16
	CDSize        uint32
	CDOffset      uint32
	CommentLength uint16
}

// EndRecord is a located ZIP end of central directory record
type EndRecord struct {
	Offset     int64 // file offset of the record itself
	CommentLen int   // length of the trailing archive comment
	DirOffset  int64 // central directory start as recorded in the record
	DirSize    int64
	Entries    int
}

// IsZip64 returns true if the record defers to a ZIP64 end record for the
// central directory location.
func (e *EndRecord) IsZip64() bool {
	return e.DirOffset == uint32Max
}

// FindEndRecord locates the end of central directory record in an archive of
// the given size. Candidate comment lengths are tried from shortest to
// longest and a candidate is only accepted if the record found there declares
// exactly that comment length, so a stray signature inside a comment does not
// match.
func FindEndRecord(r io.ReaderAt, size int64) (*EndRecord, error) {
	if size < directoryEndLen {
		return nil, fmt.Errorf("%w: file is %d bytes, shorter than an end record", sigerrors.ErrEOCDNotFound, size)
	}
	maxComment := size - directoryEndLen
	if maxComment > maxCommentLen {
		maxComment = maxCommentLen
	}
	tailStart := size - directoryEndLen - maxComment
	tail := make([]byte, directoryEndLen+maxComment)
	if _, err := r.ReadAt(tail, tailStart); err != nil {
		return nil, sigerrors.IO(fmt.Sprintf("reading %d bytes at offset %d", len(tail), tailStart), err)
	}
	for commentLen := 0; commentLen <= int(maxComment); commentLen++ {
		pos := len(tail) - directoryEndLen - commentLen
		rec := tail[pos : pos+directoryEndLen]
		if binary.LittleEndian.Uint32(rec) != directoryEndSignature {
			continue
		}
		if int(binary.LittleEndian.Uint16(rec[directoryEndCommentPos:])) != commentLen {
			continue
		}
		var end zipEndRecord
		if err := binary.Read(bytes.NewReader(rec), binary.LittleEndian, &end); err != nil {
			return nil, err
		}
		return &EndRecord{
			Offset:     tailStart + int64(pos),
			CommentLen: commentLen,
			DirOffset:  int64(end.CDOffset),
			DirSize:    int64(end.CDSize),
			Entries:    int(end.TotalCDCount),
		}, nil
	}
	return nil, fmt.Errorf("%w: no self-consistent record in the last %d bytes of a %d byte file", sigerrors.ErrEOCDNotFound, len(tail), size)
}

// dirOffsetPos returns the file offset of the central directory offset field
// for a file of the given size and comment length.
func dirOffsetPos(size int64, commentLen int) int64 {
	return size - int64(commentLen) - (directoryEndLen - directoryEndOffsetPos)
}

// ReadDirOffset reads the central directory offset field of the end record
// of a file of the given size and comment length.
func ReadDirOffset(r io.ReaderAt, size int64, commentLen int) (int64, error) {
	pos := dirOffsetPos(size, commentLen)
	if pos < directoryEndOffsetPos {
		return 0, fmt.Errorf("%w: comment length %d does not fit a %d byte file", sigerrors.ErrEOCDNotFound, commentLen, size)
	}
	var b [4]byte
	if _, err := r.ReadAt(b[:], pos); err != nil {
		return 0, sigerrors.IO(fmt.Sprintf("reading central directory offset at %d", pos), err)
	}
	return int64(binary.LittleEndian.Uint32(b[:])), nil
}

// PatchDirOffset overwrites the central directory offset field of the end
// record of a file of the given size and comment length.
func PatchDirOffset(w io.WriterAt, size int64, commentLen int, dirOffset int64) error {
	if dirOffset < 0 || dirOffset >= uint32Max {
		return fmt.Errorf("central directory offset %d does not fit a 32-bit ZIP", dirOffset)
	}
	pos := dirOffsetPos(size, commentLen)
	if pos < directoryEndOffsetPos {
		return fmt.Errorf("%w: comment length %d does not fit a %d byte file", sigerrors.ErrEOCDNotFound, commentLen, size)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(dirOffset))
	if _, err := w.WriteAt(b[:], pos); err != nil {
		return sigerrors.IO(fmt.Sprintf("writing central directory offset at %d", pos), err)
	}
	return nil
}
