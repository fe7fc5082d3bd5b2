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
	"io"
	"os"
	"time"

	"github.com/sassoftware/apkchannel/lib/channelinfo"
	"github.com/sassoftware/apkchannel/lib/magic"
	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

// Read returns the channel value stored in the archive at path. An archive
// without a channel pair is not an error; found is false.
func Read(path string) (value []byte, found bool, err error) {
	defer func(start time.Time) {
		observe("read", start, err)
	}(time.Now())
	f, err := os.Open(path)
	if err != nil {
		return nil, false, sigerrors.IO("opening archive", err)
	}
	defer f.Close()
	loc, err := locate(f)
	if err != nil {
		return nil, false, err
	}
	value, found = loc.pairs.Get(sigblock.ChannelID)
	return value, found, nil
}

// ReadInfo reads and decodes the channel payload. It returns nil if the
// archive has no channel pair.
func ReadInfo(path string) (*channelinfo.Info, error) {
	value, found, err := Read(path)
	if err != nil || !found {
		return nil, err
	}
	return channelinfo.Parse(value), nil
}

// PairInfo describes one pair of a signing block
type PairInfo struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// Layout describes where the pieces of an archive's signing block are
type Layout struct {
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	Size        int64      `json:"size"`
	EndOffset   int64      `json:"end_offset"`
	CommentLen  int        `json:"comment_len"`
	DirOffset   int64      `json:"dir_offset"`
	DirSize     int64      `json:"dir_size"`
	Entries     int        `json:"entries"`
	BlockOffset int64      `json:"block_offset"`
	BlockSize   int64      `json:"block_size"`
	Pairs       []PairInfo `json:"pairs"`
	Channel     string     `json:"channel,omitempty"`
}

// Inspect locates the signing block of the archive at path and describes it
// without modifying anything.
func Inspect(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sigerrors.IO("opening archive", err)
	}
	defer f.Close()
	fileType := magic.Detect(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, sigerrors.IO("rewinding archive", err)
	}
	loc, err := locate(f)
	if err != nil {
		return nil, err
	}
	layout := &Layout{
		Path:        path,
		Type:        fileType.String(),
		Size:        loc.size,
		EndOffset:   loc.end.Offset,
		CommentLen:  loc.end.CommentLen,
		DirOffset:   loc.block.End(),
		DirSize:     loc.end.DirSize,
		Entries:     loc.end.Entries,
		BlockOffset: loc.block.Offset,
		BlockSize:   loc.block.Size(),
	}
	for _, pair := range loc.pairs.List() {
		layout.Pairs = append(layout.Pairs, PairInfo{
			ID:     pair.ID,
			Name:   sigblock.IDName(pair.ID),
			Length: len(pair.Value),
		})
	}
	if value, ok := loc.pairs.Get(sigblock.ChannelID); ok {
		layout.Channel = string(value)
	}
	return layout, nil
}
