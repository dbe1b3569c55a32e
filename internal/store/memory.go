package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTables are the tables a MemoryStore knows about unless told otherwise
var DefaultTables = []string{"contacts", "products", "orders"}

// MemoryStore is an in-process Store used by tests and by the service when no
// database is configured.
// Unknown tables yield ErrRelationMissing, like Postgres would.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string][]Fields
	roles   map[string][]string
	runLogs []RunLog
	writes  int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store with the given tables, or DefaultTables
func NewMemoryStore(tables ...string) *MemoryStore {
	if len(tables) == 0 {
		tables = DefaultTables
	}
	s := &MemoryStore{
		tables: make(map[string][]Fields, len(tables)),
		roles:  make(map[string][]string),
	}
	for _, t := range tables {
		s.tables[t] = nil
	}
	return s
}

// GrantRole adds a role to a user
func (s *MemoryStore) GrantRole(userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = append(s.roles[userID], role)
}

// Rows returns a copy of every row in table
func (s *MemoryStore) Rows(table string) []Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fields, len(s.tables[table]))
	for i, row := range s.tables[table] {
		out[i] = copyFields(row)
	}
	return out
}

// Writes returns how many Insert and Update calls succeeded
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// RunLogs returns a copy of the audit log in insertion order
func (s *MemoryStore) RunLogs() []RunLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RunLog(nil), s.runLogs...)
}

func (s *MemoryStore) FindByLinkage(_ context.Context, table, linkageColumn, linkageID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, relationMissing(table)
	}
	for _, row := range rows {
		v, ok := row[linkageColumn]
		if !ok || v == nil || fmt.Sprint(v) != linkageID {
			continue
		}
		rec := &Record{ID: fmt.Sprint(row[ColumnID]), LinkageID: linkageID}
		if h, ok := row[ColumnHash].(string); ok {
			rec.Hash = h
		}
		if ts, ok := row[ColumnSyncedAt].(time.Time); ok {
			rec.SyncedAt = &ts
		}
		return rec, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Insert(_ context.Context, table string, fields Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		return "", relationMissing(table)
	}
	row := copyFields(fields)
	id, ok := row[ColumnID]
	if !ok || id == nil {
		id = uuid.NewString()
		row[ColumnID] = id
	}
	s.tables[table] = append(s.tables[table], row)
	s.writes++
	return fmt.Sprint(id), nil
}

func (s *MemoryStore) Update(_ context.Context, table, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return relationMissing(table)
	}
	for _, row := range rows {
		if fmt.Sprint(row[ColumnID]) != id {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		s.writes++
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) InsertRunLog(_ context.Context, log *RunLog) error {
	if log == nil {
		return errors.New("run log is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runLogs = append(s.runLogs, *log)
	return nil
}

func (s *MemoryStore) ListRunLogs(_ context.Context, filter RunLogFilter) ([]RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RunLog
	for i := len(s.runLogs) - 1; i >= 0; i-- {
		l := s.runLogs[i]
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		out = append(out, l)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := append([]string(nil), s.roles[userID]...)
	sort.Strings(roles)
	return roles, nil
}

func (s *MemoryStore) Select(_ context.Context, table string, q Query) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, relationMissing(table)
	}

	var matched []Fields
	for _, row := range rows {
		if q.matches(row) {
			matched = append(matched, row)
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.OrderBy {
				c := compareValues(matched[i][o.Column], matched[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		matched = nil
	} else {
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	page := &Page{Rows: make([]Fields, len(matched)), Total: total}
	for i, row := range matched {
		page.Rows[i] = project(row, q.Columns)
	}
	return page, nil
}

func (s *MemoryStore) Delete(_ context.Context, table string, eq map[string]any) (int64, error) {
	if len(eq) == 0 {
		return 0, errors.New("delete requires at least one filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return 0, relationMissing(table)
	}
	q := Query{Eq: eq}
	kept := rows[:0]
	var removed int64
	for _, row := range rows {
		if q.matches(row) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return removed, nil
}

func (q Query) matches(row Fields) bool {
	for col, want := range q.Eq {
		if compareValues(row[col], want) != 0 || row[col] == nil {
			return false
		}
	}
	for _, col := range q.IsNull {
		if row[col] != nil {
			return false
		}
	}
	if q.Search != nil && q.Search.Term != "" {
		term := strings.ToLower(q.Search.Term)
		found := false
		for _, col := range q.Search.Columns {
			if v := row[col]; v != nil && strings.Contains(strings.ToLower(fmt.Sprint(v)), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compareValues orders nil first, then compares like-typed values
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return cmp.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func project(row Fields, columns []string) Fields {
	if len(columns) == 0 {
		return copyFields(row)
	}
	out := make(Fields, len(columns))
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}

func copyFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func relationMissing(table string) error {
	return fmt.Errorf("%w: %s", ErrRelationMissing, table)
}
