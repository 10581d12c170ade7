package core

import (
	"path"
	"strings"
)

// PlanOffsets returns the batch offsets covering [0, total): 0, size, 2*size, ...
// The last window may be partial. No offset is issued at or beyond total.
func PlanOffsets(total, batchSize int64) []int64 {
	if total <= 0 || batchSize <= 0 {
		return nil
	}

	offsets := make([]int64, 0, (total+batchSize-1)/batchSize)
	for offset := int64(0); offset < total; offset += batchSize {
		offsets = append(offsets, offset)
	}
	return offsets
}

// PlanRounds groups the batches for a table into dispatch rounds of at most
// fanout batches each, in offset order.
func PlanRounds(total, batchSize int64, fanout int) [][]Batch {
	if fanout <= 0 {
		fanout = 1
	}

	offsets := PlanOffsets(total, batchSize)
	rounds := make([][]Batch, 0, (len(offsets)+fanout-1)/fanout)
	for len(offsets) > 0 {
		n := min(fanout, len(offsets))
		round := make([]Batch, n)
		for i, offset := range offsets[:n] {
			round[i] = Batch{Offset: offset, Size: batchSize}
		}
		rounds = append(rounds, round)
		offsets = offsets[n:]
	}
	return rounds
}

// DestinationKey builds the object key for a table's CSV: <prefix>/<table>.csv.
// An empty prefix yields <table>.csv; redundant slashes are collapsed.
func DestinationKey(prefix, table string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return table + ".csv"
	}
	return path.Join(prefix, table+".csv")
}

// OutputFileName is the local file name for a table's CSV.
func OutputFileName(table string) string {
	return table + ".csv"
}
