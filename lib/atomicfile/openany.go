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

package atomicfile

import (
	"io"
	"os"
)

// direct writes straight to a stream that can't be renamed over, such as
// stdout or a named pipe. Commit only closes it.
type direct struct {
	io.Writer
	closer io.Closer
}

func (d direct) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

func (d direct) Commit() error {
	return d.Close()
}

// WriteAny returns a writer for path. "-" writes to standard output and
// existing pipes or devices are written directly; regular files go through a
// temporary file that replaces path on Commit.
func WriteAny(path string) (AtomicFile, error) {
	if path == "-" {
		return direct{Writer: os.Stdout}, nil
	}
	if st, err := os.Stat(path); err == nil && !st.Mode().IsRegular() && !st.IsDir() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		return direct{Writer: f, closer: f}, nil
	}
	f, err := New(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
