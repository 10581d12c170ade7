package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrSinkClosed is returned when appending to a closed sink.
var ErrSinkClosed = errors.New("output sink closed")

// Sink is a table's local CSV file, shared by that table's batch workers.
//
// Each Append encodes its rows into memory first and then writes them with a
// single Write call under the sink's mutex, so batches never interleave.
type Sink struct {
	path string

	mu     sync.Mutex
	f      *os.File
	rows   int64
	bytes  int64
	closed bool
}

// CreateSink deletes any existing file at path and opens a fresh one.
func CreateSink(path string) (*Sink, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove previous output %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}

	return &Sink{path: path, f: f}, nil
}

// Append writes rows as one CSV block and returns how many rows it wrote.
// An empty batch writes nothing.
func (s *Sink) Append(rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if err := EncodeRows(&buf, rows); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}

	n, err := s.f.Write(buf.Bytes())
	s.bytes += int64(n)
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", s.path, err)
	}

	s.rows += int64(len(rows))
	return int64(len(rows)), nil
}

// Path returns the file location.
func (s *Sink) Path() string {
	return s.path
}

// Rows returns the number of rows appended so far.
func (s *Sink) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Bytes returns the number of bytes written so far.
func (s *Sink) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Close syncs and closes the file. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	syncErr := s.f.Sync()
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync %s: %w", s.path, syncErr)
	}
	return nil
}
