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

// Package channel embeds a distribution channel payload into the signing
// block of an already signed APK, and reads it back, without disturbing any
// of the bytes covered by the signature.
//
// Every call locates the block from the current file contents; nothing is
// cached between calls.
package channel

import (
	"fmt"
	"os"

	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
	"github.com/sassoftware/apkchannel/lib/zipslicer"
)

type located struct {
	size  int64
	end   *zipslicer.EndRecord
	block *sigblock.Block
	pairs *sigblock.Pairs
}

func locate(f *os.File) (*located, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, sigerrors.IO("stat", err)
	}
	size := info.Size()
	end, err := zipslicer.FindEndRecord(f, size)
	if err != nil {
		return nil, err
	}
	if end.IsZip64() {
		return nil, fmt.Errorf("%w: ZIP64 archives are not supported", sigerrors.ErrEOCDNotFound)
	}
	dirOffset, err := zipslicer.ReadDirOffset(f, size, end.CommentLen)
	if err != nil {
		return nil, err
	}
	if dirOffset > end.Offset {
		return nil, fmt.Errorf("%w: central directory offset %d is past the end record at %d", sigerrors.ErrEOCDNotFound, dirOffset, end.Offset)
	}
	block, err := sigblock.Locate(f, dirOffset)
	if err != nil {
		return nil, err
	}
	pairs, err := block.Pairs()
	if err != nil {
		return nil, fmt.Errorf("block at %d: %w", block.Offset, err)
	}
	return &located{size: size, end: end, block: block, pairs: pairs}, nil
}
