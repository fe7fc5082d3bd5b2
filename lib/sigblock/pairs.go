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

package sigblock

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

// Pair is a single ID/value entry of a signing block
type Pair struct {
	ID    uint32
	Value []byte
}

// Pairs is the ordered ID/value content of a signing block. IDs are unique;
// setting an existing ID replaces its value without moving it.
type Pairs struct {
	list  []Pair
	index map[uint32]int
}

// NewPairs returns an empty pair list
func NewPairs() *Pairs {
	return &Pairs{index: make(map[uint32]int)}
}

// Decode parses the pair sequence of a raw signing block, including its size
// fields and footer. If an ID occurs more than once the last value wins and
// the entry keeps the position of the first occurrence.
func Decode(raw []byte) (*Pairs, error) {
	if len(raw) < MinSize {
		return nil, fmt.Errorf("%w: block is %d bytes, minimum is %d", sigerrors.ErrContainerCorrupt, len(raw), MinSize)
	}
	p := NewPairs()
	pos := sizeFieldLen
	end := len(raw) - FooterSize
	for pos < end {
		if end-pos < pairHeaderLen {
			return nil, fmt.Errorf("%w: %d bytes left at offset %d, too short for a pair header", sigerrors.ErrContainerCorrupt, end-pos, pos)
		}
		length := binary.LittleEndian.Uint64(raw[pos:])
		avail := uint64(end - pos - sizeFieldLen)
		if length < 4 || length > avail {
			return nil, fmt.Errorf("%w: pair at offset %d declares length %d but %d bytes remain", sigerrors.ErrContainerCorrupt, pos, length, avail)
		}
		id := binary.LittleEndian.Uint32(raw[pos+sizeFieldLen:])
		valueStart := pos + pairHeaderLen
		valueEnd := pos + sizeFieldLen + int(length)
		p.Set(id, bytes.Clone(raw[valueStart:valueEnd]))
		pos = valueEnd
	}
	return p, nil
}

// Encode serializes the pairs into a complete signing block
func Encode(p *Pairs) []byte {
	size := p.EncodedSize()
	inner := uint64(size - sizeFieldLen)
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint64(buf, inner)
	for _, pair := range p.list {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(4+len(pair.Value)))
		buf = binary.LittleEndian.AppendUint32(buf, pair.ID)
		buf = append(buf, pair.Value...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, inner)
	buf = binary.LittleEndian.AppendUint64(buf, MagicLo)
	buf = binary.LittleEndian.AppendUint64(buf, MagicHi)
	return buf
}

// EncodedSize returns the length of the block that Encode would produce
func (p *Pairs) EncodedSize() int64 {
	size := int64(MinSize)
	for _, pair := range p.list {
		size += pairHeaderLen + int64(len(pair.Value))
	}
	return size
}

// Len returns the number of pairs
func (p *Pairs) Len() int {
	return len(p.list)
}

// Has returns true if a pair with the given ID exists
func (p *Pairs) Has(id uint32) bool {
	_, ok := p.index[id]
	return ok
}

// Get returns the value of the pair with the given ID
func (p *Pairs) Get(id uint32) ([]byte, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.list[i].Value, true
}

// Set replaces the value of an existing pair or appends a new one. It
// returns true if a previous value was replaced.
func (p *Pairs) Set(id uint32, value []byte) bool {
	if i, ok := p.index[id]; ok {
		p.list[i].Value = value
		return true
	}
	p.index[id] = len(p.list)
	p.list = append(p.list, Pair{ID: id, Value: value})
	return false
}

// Delete removes the pair with the given ID, returning true if it existed
func (p *Pairs) Delete(id uint32) bool {
	i, ok := p.index[id]
	if !ok {
		return false
	}
	p.list = append(p.list[:i], p.list[i+1:]...)
	delete(p.index, id)
	for j := i; j < len(p.list); j++ {
		p.index[p.list[j].ID] = j
	}
	return true
}

// IDs returns the pair IDs in order
func (p *Pairs) IDs() []uint32 {
	ids := make([]uint32, len(p.list))
	for i, pair := range p.list {
		ids[i] = pair.ID
	}
	return ids
}

// List returns the pairs in order. The slice must not be modified.
func (p *Pairs) List() []Pair {
	return p.list
}
