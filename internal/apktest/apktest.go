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

// Package apktest builds APK-shaped archives for tests: a real ZIP file with
// an APK signing block spliced in between the last entry and the central
// directory.
package apktest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/zipslicer"
)

// Options controls the archive produced by Build
type Options struct {
	// Files maps entry names to contents. Defaults to a manifest and a dex.
	Files map[string]string
	// Comment is the archive comment
	Comment string
	// Pairs are placed in the signing block in order. Defaults to a single
	// v2 signature pair.
	Pairs []sigblock.Pair
	// NoBlock omits the signing block entirely
	NoBlock bool
}

// SignaturePair returns a fake v2 signature pair with a recognizable value
func SignaturePair() sigblock.Pair {
	value := make([]byte, 64)
	for i := range value {
		value[i] = byte(i * 7)
	}
	return sigblock.Pair{ID: sigblock.SchemeV2ID, Value: value}
}

// PaddingPair returns a verity padding pair of n zero bytes
func PaddingPair(n int) sigblock.Pair {
	return sigblock.Pair{ID: sigblock.PaddingID, Value: make([]byte, n)}
}

// Build returns the bytes of an archive
func Build(t testing.TB, opts Options) []byte {
	t.Helper()
	files := opts.Files
	if files == nil {
		files = map[string]string{
			"AndroidManifest.xml": "<manifest/>",
			"classes.dex":         "dex\n035\x00",
		}
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedKeys(files) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.SetComment(opts.Comment))
	require.NoError(t, zw.Close())
	if opts.NoBlock {
		return buf.Bytes()
	}
	pairs := opts.Pairs
	if pairs == nil {
		pairs = []sigblock.Pair{SignaturePair()}
	}
	p := sigblock.NewPairs()
	for _, pair := range pairs {
		p.Set(pair.ID, pair.Value)
	}
	return InsertBlock(t, buf.Bytes(), sigblock.Encode(p))
}

// InsertBlock splices a raw block in front of the central directory of a ZIP
// and fixes the end record to match.
func InsertBlock(t testing.TB, archive, block []byte) []byte {
	t.Helper()
	end, err := zipslicer.FindEndRecord(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	out := make([]byte, 0, len(archive)+len(block))
	out = append(out, archive[:end.DirOffset]...)
	out = append(out, block...)
	out = append(out, archive[end.DirOffset:]...)
	pos := len(out) - end.CommentLen - 6
	binary.LittleEndian.PutUint32(out[pos:], uint32(end.DirOffset)+uint32(len(block)))
	return out
}

// Write builds an archive into a file under dir and returns its path
func Write(t testing.TB, dir, name string, opts Options) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, Build(t, opts), 0644))
	return path
}

// RequireZip checks that the file at path opens as a ZIP and that every
// entry reads back with the expected contents.
func RequireZip(t testing.TB, path string, files map[string]string) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	if files == nil {
		files = map[string]string{
			"AndroidManifest.xml": "<manifest/>",
			"classes.dex":         "dex\n035\x00",
		}
	}
	require.Len(t, zr.File, len(files))
	for _, f := range zr.File {
		expected, ok := files[f.Name]
		require.True(t, ok, "unexpected entry %s", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		require.Equal(t, expected, b.String(), f.Name)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
