package core

import (
	"sync"
	"time"

	"github.com/JonMunkholm/tablexport/internal/config"
)

// TableProgress is a point-in-time view of one table's export.
type TableProgress struct {
	Table         string     `json:"table"`
	State         TableState `json:"state"`
	TotalRows     int64      `json:"totalRows"`
	ProcessedRows int64      `json:"processedRows"`
	Key           string     `json:"key,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

// Percent returns the row progress as a percentage (0-100).
func (p TableProgress) Percent() int {
	if p.TotalRows <= 0 {
		if p.State == StateDone {
			return 100
		}
		return 0
	}
	pct := int(p.ProcessedRows * 100 / p.TotalRows)
	return min(pct, 100)
}

// RunStatus is a snapshot of a whole run.
type RunStatus struct {
	RunID     string          `json:"runId"`
	StartedAt time.Time       `json:"startedAt"`
	Done      bool            `json:"done"`
	Failed    int             `json:"failed"`
	Tables    []TableProgress `json:"tables"`
}

// Tracker records per-table progress for the status server.
// It is safe for concurrent use.
type Tracker struct {
	runID     string
	startedAt time.Time

	mu     sync.RWMutex
	order  []string
	tables map[string]*TableProgress
}

// NewTracker registers every table as pending.
func NewTracker(runID string, tables []config.TableSpec) *Tracker {
	t := &Tracker{
		runID:     runID,
		startedAt: time.Now(),
		order:     make([]string, 0, len(tables)),
		tables:    make(map[string]*TableProgress, len(tables)),
	}
	for _, spec := range tables {
		t.ensure(spec.Name)
	}
	return t
}

// ensure must be called with mu held (or before the tracker is shared).
func (t *Tracker) ensure(table string) *TableProgress {
	p, ok := t.tables[table]
	if !ok {
		p = &TableProgress{Table: table, State: StatePending}
		t.tables[table] = p
		t.order = append(t.order, table)
	}
	return p
}

func (t *Tracker) update(table string, fn func(*TableProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.ensure(table))
}

// SetState moves table to state, stamping start and finish times.
func (t *Tracker) SetState(table string, state TableState) {
	now := time.Now()
	t.update(table, func(p *TableProgress) {
		if p.StartedAt == nil && state != StatePending {
			p.StartedAt = &now
		}
		if state.Terminal() {
			p.FinishedAt = &now
		}
		p.State = state
	})
}

// SetTotal records the counted row total.
func (t *Tracker) SetTotal(table string, total int64) {
	t.update(table, func(p *TableProgress) { p.TotalRows = total })
}

// AddProcessed adds n exported rows.
func (t *Tracker) AddProcessed(table string, n int64) {
	t.update(table, func(p *TableProgress) { p.ProcessedRows += n })
}

// SetKey records the destination object key.
func (t *Tracker) SetKey(table, key string) {
	t.update(table, func(p *TableProgress) { p.Key = key })
}

// Fail marks table failed with err.
func (t *Tracker) Fail(table string, err error) {
	now := time.Now()
	t.update(table, func(p *TableProgress) {
		p.State = StateFailed
		p.FinishedAt = &now
		if err != nil {
			p.Error = err.Error()
			p.ErrorCode = MapError(err).Code
		}
	})
}

// Table returns the progress of one table.
func (t *Tracker) Table(name string) (TableProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.tables[name]
	if !ok {
		return TableProgress{}, false
	}
	return *p, true
}

// Snapshot returns the state of every table in registration order.
func (t *Tracker) Snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := RunStatus{
		RunID:     t.runID,
		StartedAt: t.startedAt,
		Done:      true,
		Tables:    make([]TableProgress, 0, len(t.order)),
	}
	for _, name := range t.order {
		p := *t.tables[name]
		if !p.State.Terminal() {
			status.Done = false
		}
		if p.State == StateFailed {
			status.Failed++
		}
		status.Tables = append(status.Tables, p)
	}
	return status
}
