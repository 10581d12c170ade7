package core

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// CSV Serializer Benchmarks
// ============================================================================

func benchRow(i int) []any {
	return []any{
		int64(i),
		uuid.New(),
		fmt.Sprintf("customer %d, inc.", i),
		"free text with   several\nspaces and a \"quote\"",
		19.99,
		true,
		time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		nil,
	}
}

func benchRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = benchRow(i)
	}
	return rows
}

// BenchmarkFormatRecord benchmarks stringifying one mixed-type row.
// This runs once per exported row.
func BenchmarkFormatRecord(b *testing.B) {
	row := benchRow(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FormatRecord(row)
	}
}

// BenchmarkFormatValue_Plain benchmarks the most common case: short text.
func BenchmarkFormatValue_Plain(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FormatValue("widget")
	}
}

// BenchmarkEncodeRows benchmarks encoding a batch block in memory.
func BenchmarkEncodeRows(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		rows := benchRows(size)
		b.Run(fmt.Sprintf("rows=%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := EncodeRows(io.Discard, rows); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// ============================================================================
// Sink Benchmarks
// ============================================================================

// BenchmarkSinkAppend_Parallel benchmarks concurrent batch appends to one file,
// the shape of a paging round.
func BenchmarkSinkAppend_Parallel(b *testing.B) {
	sink, err := CreateSink(filepath.Join(b.TempDir(), "bench.csv"))
	if err != nil {
		b.Fatal(err)
	}
	defer sink.Close()

	rows := benchRows(500)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := sink.Append(rows); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// ============================================================================
// Planning Benchmarks
// ============================================================================

// BenchmarkPlanRounds benchmarks planning a large table.
func BenchmarkPlanRounds(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PlanRounds(500_000_000, 150_000, 3)
	}
}
