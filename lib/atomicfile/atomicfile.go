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
	"errors"
	"io"
	"os"
	"path/filepath"
)

type AtomicFile interface {
	io.WriteCloser
	Commit() error
}

// File is a temporary file in the same directory as its destination. It
// replaces the destination when committed and is deleted if closed first.
type File struct {
	*os.File
	name string
	mode os.FileMode
	done bool
}

func New(name string) (*File, error) {
	tempfile, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".tmp*")
	if err != nil {
		return nil, err
	}
	return &File{File: tempfile, name: name, mode: 0644}, nil
}

// Name returns the final destination path
func (f *File) Name() string {
	return f.name
}

// TempName returns the path of the temporary file
func (f *File) TempName() string {
	return f.File.Name()
}

// SetMode sets the permissions applied to the file on commit
func (f *File) SetMode(mode os.FileMode) {
	f.mode = mode.Perm()
}

// Close discards the temporary file if it has not been committed
func (f *File) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	f.File.Close()
	return os.Remove(f.File.Name())
}

// Commit moves the temporary file over the destination
func (f *File) Commit() error {
	if f.done {
		return errors.New("file is closed")
	}
	if err := f.File.Chmod(f.mode); err != nil {
		f.Close()
		return err
	}
	if err := f.File.Close(); err != nil {
		f.done = true
		os.Remove(f.File.Name())
		return err
	}
	f.done = true
	// rename can't overwrite on windows
	if err := os.Remove(f.name); err != nil && !os.IsNotExist(err) {
		os.Remove(f.File.Name())
		return err
	}
	if err := os.Rename(f.File.Name(), f.name); err != nil {
		os.Remove(f.File.Name())
		return err
	}
	return nil
}
