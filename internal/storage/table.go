// Package storage persists records as pipe-delimited lines of text.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const Delimiter = "|"

var ErrInvalidField = errors.New("field contains a delimiter or line break")

// Record is one row; fields are in column order.
type Record []string

// Table is the whole-table storage contract used by the repositories.
type Table interface {
	LoadAll(ctx context.Context) ([]Record, error)
	SaveAll(ctx context.Context, records []Record) error
	AppendOne(ctx context.Context, record Record) error
	// Update replaces the table with fn's result. No other write to the
	// table can happen between the load and the save.
	Update(ctx context.Context, fn func([]Record) ([]Record, error)) error
}

// FileTable stores a table in a single text file. When header is set it is
// written as the first line and skipped on load. Lines with a column count
// other than len(header) (or columns, for headerless files) are skipped.
type FileTable struct {
	path    string
	header  []string
	columns int
	logger  *slog.Logger

	mu sync.Mutex
}

type Option func(*FileTable)

func WithHeader(columns ...string) Option {
	return func(t *FileTable) {
		t.header = columns
		t.columns = len(columns)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *FileTable) {
		t.logger = logger
	}
}

func NewFileTable(path string, columns int, opts ...Option) *FileTable {
	t := &FileTable{
		path:    path,
		columns: columns,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *FileTable) Path() string {
	return t.path
}

func (t *FileTable) LoadAll(ctx context.Context) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.load(ctx)
}

func (t *FileTable) load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}

		return nil, err
	}
	defer f.Close()

	records := make([]Record, 0)
	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, Delimiter)

		if lineNo == 1 && t.header != nil && slices.Equal(fields, t.header) {
			continue
		}

		if t.columns > 0 && len(fields) != t.columns {
			t.logger.Warn("skipping malformed line", "file", filepath.Base(t.path), "line", lineNo, "columns", len(fields))
			continue
		}

		records = append(records, Record(fields))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// SaveAll replaces the table contents. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (t *FileTable) SaveAll(ctx context.Context, records []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(ctx, records)
}

func (t *FileTable) Update(ctx context.Context, fn func([]Record) ([]Record, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.load(ctx)
	if err != nil {
		return err
	}

	records, err = fn(records)
	if err != nil {
		return err
	}

	return t.save(ctx, records)
}

func (t *FileTable) save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	if t.header != nil {
		b.WriteString(strings.Join(t.header, Delimiter))
		b.WriteByte('\n')
	}

	for _, r := range records {
		line, err := t.format(r)
		if err != nil {
			return err
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*")
	if err != nil {
		return err
	}

	_, err = tmp.WriteString(b.String())
	if err == nil {
		err = tmp.Sync()
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		return errors.Join(err, os.Remove(tmp.Name()))
	}

	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return errors.Join(err, os.Remove(tmp.Name()))
	}

	return nil
}

func (t *FileTable) AppendOne(ctx context.Context, record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := t.format(record)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var b strings.Builder
	if info.Size() == 0 && t.header != nil {
		b.WriteString(strings.Join(t.header, Delimiter))
		b.WriteByte('\n')
	}
	b.WriteString(line)
	b.WriteByte('\n')

	_, err = f.WriteString(b.String())
	return err
}

func (t *FileTable) format(r Record) (string, error) {
	if t.columns > 0 && len(r) != t.columns {
		return "", fmt.Errorf("record has %d fields, table %s expects %d", len(r), filepath.Base(t.path), t.columns)
	}

	for _, field := range r {
		if strings.ContainsAny(field, Delimiter+"\n\r") {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
	}

	return strings.Join(r, Delimiter), nil
}

// MemoryTable keeps records in memory. Loaded slices are copies.
type MemoryTable struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryTable(records ...Record) *MemoryTable {
	return &MemoryTable{records: cloneRecords(records)}
}

func (m *MemoryTable) LoadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneRecords(m.records), nil
}

func (m *MemoryTable) SaveAll(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = cloneRecords(records)
	return nil
}

func (m *MemoryTable) Update(ctx context.Context, fn func([]Record) ([]Record, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := fn(cloneRecords(m.records))
	if err != nil {
		return err
	}

	m.records = cloneRecords(records)
	return nil
}

func (m *MemoryTable) AppendOne(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, slices.Clone(record))
	return nil
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = slices.Clone(r)
	}

	return out
}
