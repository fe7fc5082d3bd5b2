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

// Package sigerrors defines the error kinds returned while locating and
// rewriting the APK signing block.
package sigerrors

import (
	"errors"
	"fmt"
)

var (
	ErrEOCDNotFound          = errors.New("zip end of central directory not found")
	ErrContainerTooSmall     = errors.New("archive too small to hold an APK signing block")
	ErrContainerNotFound     = errors.New("APK signing block not found")
	ErrSizeMismatch          = errors.New("APK signing block size fields do not match")
	ErrSignatureEntryMissing = errors.New("APK signature scheme v2 block not found")
	ErrContainerCorrupt      = errors.New("APK signing block pair sequence is corrupt")
	ErrIO                    = errors.New("i/o error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrEOCDNotFound, "eocd_not_found"},
	{ErrContainerTooSmall, "container_too_small"},
	{ErrContainerNotFound, "container_not_found"},
	{ErrSizeMismatch, "size_mismatch"},
	{ErrSignatureEntryMissing, "signature_entry_missing"},
	{ErrContainerCorrupt, "container_corrupt"},
	{ErrIO, "io"},
}

// KindOf returns a short stable name for the kind of err, suitable for
// metrics labels and batch reports. It returns "ok" for nil and "other" for
// errors that did not originate here.
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// IO wraps a filesystem error so that it matches both ErrIO and the
// underlying error.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
