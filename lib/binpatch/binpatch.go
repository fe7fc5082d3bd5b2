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

package binpatch

import (
	"fmt"
	"io"
	"os"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

// File is the subset of *os.File needed to patch a file in place
type File interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// Splice replaces length bytes at offset with data. Everything after the
// replaced region is moved to directly follow data and the file is truncated
// to its new size, which is returned. The moved tail is held in memory, so
// this is meant for regions near the end of a file.
//
// If an error is returned the file may be left partially rewritten.
func Splice(f File, offset, length int64, data []byte) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, sigerrors.IO("stat", err)
	}
	size := info.Size()
	if offset < 0 || length < 0 || offset+length > size {
		return 0, fmt.Errorf("splice region %d+%d is outside of %d byte file", offset, length, size)
	}
	tail := make([]byte, size-offset-length)
	if _, err := f.ReadAt(tail, offset+length); err != nil {
		return 0, sigerrors.IO(fmt.Sprintf("reading %d bytes at %d", len(tail), offset+length), err)
	}
	if err := writeFull(f, data, offset); err != nil {
		return 0, err
	}
	tailPos := offset + int64(len(data))
	if err := writeFull(f, tail, tailPos); err != nil {
		return 0, err
	}
	newSize := tailPos + int64(len(tail))
	if err := f.Truncate(newSize); err != nil {
		return 0, sigerrors.IO(fmt.Sprintf("truncating to %d", newSize), err)
	}
	return newSize, nil
}

func writeFull(w io.WriterAt, d []byte, offset int64) error {
	if n, err := w.WriteAt(d, offset); err != nil {
		return sigerrors.IO(fmt.Sprintf("writing %d bytes at %d", len(d), offset), err)
	} else if n != len(d) {
		return sigerrors.IO(fmt.Sprintf("writing %d bytes at %d", len(d), offset), io.ErrShortWrite)
	}
	return nil
}
