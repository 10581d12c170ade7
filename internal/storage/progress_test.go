package storage

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestCountingReader(t *testing.T) {
	data := strings.Repeat("x", 1000)
	r := NewCountingReader(strings.NewReader(data), int64(len(data)), nil)

	buf := make([]byte, 250)
	if _, err := r.Read(buf); err != nil {
		t.Fatal(err)
	}
	if r.BytesRead != 250 {
		t.Errorf("BytesRead = %d, want 250", r.BytesRead)
	}
	if r.Progress() != 25 {
		t.Errorf("Progress() = %d, want 25", r.Progress())
	}

	if _, err := io.ReadAll(r); err != nil {
		t.Fatal(err)
	}
	if r.Progress() != 100 {
		t.Errorf("Progress() = %d, want 100", r.Progress())
	}
}

func TestCountingReader_UnknownTotal(t *testing.T) {
	r := NewCountingReader(strings.NewReader("abc"), 0, nil)
	io.ReadAll(r)

	if r.Progress() != 0 {
		t.Errorf("Progress() = %d, want 0 for unknown total", r.Progress())
	}
	if r.BytesRead != 3 {
		t.Errorf("BytesRead = %d, want 3", r.BytesRead)
	}
}

func TestCountingReader_LogsEveryStep(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	data := strings.Repeat("x", 100)
	r := NewCountingReader(strings.NewReader(data), 100, logger)

	buf := make([]byte, 5)
	for {
		if _, err := r.Read(buf); err == io.EOF {
			break
		}
	}

	if got := strings.Count(out.String(), "upload progress"); got != 10 {
		t.Errorf("progress lines = %d, want 10\n%s", got, out.String())
	}
}
