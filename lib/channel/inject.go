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

package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/sassoftware/apkchannel/lib/atomicfile"
	"github.com/sassoftware/apkchannel/lib/binpatch"
	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
	"github.com/sassoftware/apkchannel/lib/zipslicer"
)

// Result describes what an injection changed
type Result struct {
	Path           string `json:"path"`
	BlockOffset    int64  `json:"block_offset"`
	OldBlockSize   int64  `json:"old_block_size"`
	NewBlockSize   int64  `json:"new_block_size"`
	OldDirOffset   int64  `json:"old_dir_offset"`
	NewDirOffset   int64  `json:"new_dir_offset"`
	OldSize        int64  `json:"old_size"`
	NewSize        int64  `json:"new_size"`
	Replaced       bool   `json:"replaced"`
	PaddingRemoved bool   `json:"padding_removed"`
}

// Inject stores value as the channel pair of the signing block in dest. If
// src is a different file it is first copied to dest. The archive must
// already carry an APK Signature Scheme v2 block. Any verity padding pair is
// dropped, and a previous channel value is replaced.
//
// dest is rewritten in place. If the copy was made by this call and
// injection fails, dest is removed; if src and dest are the same file, a
// failure before the rewrite leaves it untouched but a failure or
// cancellation during the rewrite leaves it corrupt. Use InjectAtomic when
// that matters.
func Inject(ctx context.Context, src, dest string, value []byte) (res *Result, err error) {
	defer func(start time.Time) {
		observe("inject", start, err)
	}(time.Now())
	copied := false
	if same, err := samePath(src, dest); err != nil {
		return nil, err
	} else if !same {
		if err := copyFile(src, dest); err != nil {
			return nil, err
		}
		copied = true
	}
	res, err = injectPath(ctx, dest, value)
	if err != nil && copied {
		os.Remove(dest)
	}
	return res, err
}

func injectPath(ctx context.Context, dest string, value []byte) (res *Result, err error) {
	f, err := os.OpenFile(dest, os.O_RDWR, 0)
	if err != nil {
		return nil, sigerrors.IO("opening destination", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = sigerrors.IO("closing destination", cerr)
		}
	}()
	res, err = injectFile(ctx, f, value)
	if res != nil {
		res.Path = dest
	}
	return res, err
}

// InjectAtomic is like Inject but builds the result in a temporary file next
// to dest and only renames it into place once injection has succeeded. dest
// is never left partially written, and src may be the same file as dest.
func InjectAtomic(ctx context.Context, src, dest string, value []byte) (res *Result, err error) {
	defer func(start time.Time) {
		observe("inject", start, err)
	}(time.Now())
	out, err := atomicfile.New(dest)
	if err != nil {
		return nil, sigerrors.IO("creating temporary file", err)
	}
	defer out.Close()
	mode, err := copyInto(out.File, src)
	if err != nil {
		return nil, err
	}
	out.SetMode(mode)
	res, err = injectFile(ctx, out.File, value)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, sigerrors.IO("committing "+dest, err)
	}
	res.Path = dest
	return res, nil
}

func injectFile(ctx context.Context, f *os.File, value []byte) (*Result, error) {
	log := zerolog.Ctx(ctx)
	loc, err := locate(f)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("comment_len", loc.end.CommentLen).
		Int64("dir_offset", loc.block.End()).
		Int64("block_offset", loc.block.Offset).
		Int64("block_size", loc.block.Size()).
		Int("pairs", loc.pairs.Len()).
		Msg("located signing block")
	if !loc.pairs.Has(sigblock.SchemeV2ID) {
		return nil, fmt.Errorf("%w: signing block at %d has %s", sigerrors.ErrSignatureEntryMissing, loc.block.Offset, describeIDs(loc.pairs))
	}
	res := &Result{
		BlockOffset:  loc.block.Offset,
		OldBlockSize: loc.block.Size(),
		OldDirOffset: loc.block.End(),
		OldSize:      loc.size,
	}
	res.PaddingRemoved = loc.pairs.Delete(sigblock.PaddingID)
	res.Replaced = loc.pairs.Set(sigblock.ChannelID, bytes.Clone(value))
	newBlock := sigblock.Encode(loc.pairs)
	res.NewBlockSize = int64(len(newBlock))
	res.NewDirOffset = loc.block.Offset + res.NewBlockSize
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.NewSize, err = binpatch.Splice(f, loc.block.Offset, loc.block.Size(), newBlock)
	if err != nil {
		return nil, err
	}
	if err := zipslicer.PatchDirOffset(f, res.NewSize, loc.end.CommentLen, res.NewDirOffset); err != nil {
		return nil, err
	}
	log.Debug().
		Int64("new_block_size", res.NewBlockSize).
		Int64("new_dir_offset", res.NewDirOffset).
		Int64("new_size", res.NewSize).
		Bool("replaced", res.Replaced).
		Bool("padding_removed", res.PaddingRemoved).
		Msg("rewrote signing block")
	return res, nil
}

func describeIDs(p *sigblock.Pairs) string {
	if p.Len() == 0 {
		return "no pairs"
	}
	var b bytes.Buffer
	b.WriteString("pairs ")
	for i, id := range p.IDs() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sigblock.IDName(id))
	}
	return b.String()
}

// samePath reports whether src and dest refer to the same file
func samePath(src, dest string) (bool, error) {
	if filepath.Clean(src) == filepath.Clean(dest) {
		return true, nil
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, sigerrors.IO("stat source", err)
	}
	destInfo, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, sigerrors.IO("stat destination", err)
	}
	return os.SameFile(srcInfo, destInfo), nil
}

func copyFile(src, dest string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return sigerrors.IO("stat source", err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return sigerrors.IO("creating destination", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = sigerrors.IO("closing destination", cerr)
		}
	}()
	_, err = copyInto(out, src)
	return err
}

func copyInto(w io.Writer, src string) (os.FileMode, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, sigerrors.IO("opening source", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, sigerrors.IO("stat source", err)
	}
	if n, err := io.Copy(w, in); err != nil {
		return 0, sigerrors.IO("copying "+src, err)
	} else if n != info.Size() {
		return 0, sigerrors.IO("copying "+src, fmt.Errorf("copied %d of %d bytes", n, info.Size()))
	}
	return info.Mode(), nil
}
