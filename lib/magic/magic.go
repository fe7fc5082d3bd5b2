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

package magic

import (
	"bytes"
	"encoding/binary"
	"io"
)

type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeZIP
	FileTypeJAR
	FileTypeAPK
)

func (t FileType) String() string {
	switch t {
	case FileTypeZIP:
		return "zip"
	case FileTypeJAR:
		return "jar"
	case FileTypeAPK:
		return "apk"
	default:
		return "unknown"
	}
}

// IsZip returns true for any ZIP-based type
func (t FileType) IsZip() bool {
	return t != FileTypeUnknown
}

var (
	zipLocalHeader = []byte{0x50, 0x4b, 0x03, 0x04}
	zipEmptyEnd    = []byte{0x50, 0x4b, 0x05, 0x06}
)

// Detect sniffs the first kilobyte of r
func Detect(r io.Reader) FileType {
	var buf [1024]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		return FileTypeUnknown
	}
	blob := buf[:n]
	switch {
	case bytes.HasPrefix(blob, zipEmptyEnd):
		return FileTypeZIP
	case bytes.HasPrefix(blob, zipLocalHeader):
		if bytes.Contains(blob, []byte("AndroidManifest.xml")) || bytes.Contains(blob, []byte("classes.dex")) {
			return FileTypeAPK
		}
		if len(blob) >= 30 {
			fnLen := int(binary.LittleEndian.Uint16(blob[26:28]))
			if len(blob) > 31+fnLen && blob[30+fnLen] == 0xfe && blob[31+fnLen] == 0xca {
				return FileTypeJAR
			}
		}
		if bytes.Contains(blob, []byte("META-INF/")) {
			return FileTypeJAR
		}
		return FileTypeZIP
	}
	return FileTypeUnknown
}
