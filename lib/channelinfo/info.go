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

// Package channelinfo encodes the channel payload stored in the signing
// block. The payload is a flat JSON object with a "channel" key plus any
// number of extra string keys, the same layout walle uses.
package channelinfo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const channelKey = "channel"

// Info is a decoded channel payload
type Info struct {
	Channel string
	Extra   map[string]string
}

// New returns an Info for a channel name with no extra keys
func New(channel string) *Info {
	return &Info{Channel: channel}
}

// Marshal encodes the payload. Keys are emitted in sorted order so the same
// Info always produces the same bytes.
func (i *Info) Marshal() ([]byte, error) {
	if i.Channel == "" {
		return nil, errors.New("channel name is empty")
	}
	m := make(map[string]string, len(i.Extra)+1)
	for k, v := range i.Extra {
		if k == channelKey {
			return nil, fmt.Errorf("extra key %q is reserved", k)
		}
		m[k] = v
	}
	m[channelKey] = i.Channel
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Parse decodes a payload. Values that are not a JSON object are taken to be
// a bare channel name. Non-string JSON values in an object are kept as their
// JSON text.
func Parse(blob []byte) *Info {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(blob, &m); err != nil || m == nil {
		return &Info{Channel: strings.ToValidUTF8(string(blob), "")}
	}
	info := new(Info)
	for k, raw := range m {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		if k == channelKey {
			info.Channel = s
			continue
		}
		if info.Extra == nil {
			info.Extra = make(map[string]string)
		}
		info.Extra[k] = s
	}
	return info
}

// ParseExtra parses "key=value" strings as given on the command line
func ParseExtra(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid extra value %q, expected key=value", arg)
		}
		m[k] = v
	}
	return m, nil
}
