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

// Package logging configures the process-wide zerolog logger for the command
// line tool.
package logging

import (
	"fmt"
	stdlog "log"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00" // RFC3339 with 3 decimal places, padded

// Setup initializes zerolog. An empty logFile writes human-readable text to
// stderr, "-" writes JSON to stderr, and anything else appends JSON to that
// file.
func Setup(levelName, logFile string) error {
	zerolog.TimeFieldFormat = rfc3339Milli
	zerolog.DurationFieldInteger = true
	switch logFile {
	case "-":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	default:
		w, err := OpenFile(logFile)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	if levelName == "" {
		levelName = zerolog.InfoLevel.String()
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.Logger = log.Logger.Level(level)
	zerolog.DefaultContextLogger = &log.Logger
	// pass stdlib logger through
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
	return nil
}

// FileWriter appends to a log file, reopening it if it was moved or deleted
// since the last write so that external log rotation works.
type FileWriter struct {
	path string
	mu   sync.Mutex
	f    *os.File
	info os.FileInfo
}

// OpenFile opens path for appending, creating it if needed
func OpenFile(path string) (*FileWriter, error) {
	w := &FileWriter{path: path}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *FileWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if w.f != nil {
		w.f.Close()
	}
	w.f, w.info = f, info
	return nil
}

func (w *FileWriter) Write(d []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	if current, err := os.Stat(w.path); err != nil || !os.SameFile(current, w.info) {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	return w.f.Write(d)
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
