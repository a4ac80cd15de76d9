// Package jsonl stores records in an append-only flat file holding one JSON object
// per line.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// Backend is the name reported in storage errors.
const Backend = "jsonl"

// maxLineSize bounds a single encoded record.
const maxLineSize = 16 << 20

// line is the on-disk form of a record. Text that is not valid UTF-8 is kept
// byte-for-byte in TextB64 instead of Text.
type line struct {
	ID        model.RecordID `json:"id"`
	Text      string         `json:"text"`
	TextB64   string         `json:"text_b64,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func newLine(id model.RecordID, text string, createdAt string) line {
	l := line{ID: id, CreatedAt: createdAt}
	if utf8.ValidString(text) {
		l.Text = text
	} else {
		l.TextB64 = base64.StdEncoding.EncodeToString([]byte(text))
	}
	return l
}

func (l line) text() (string, error) {
	if l.TextB64 == "" {
		return l.Text, nil
	}
	raw, err := base64.StdEncoding.DecodeString(l.TextB64)
	if err != nil {
		return "", fmt.Errorf("decode text_b64: %w", err)
	}
	return string(raw), nil
}

// RecordJSONL is a flat-file implementation of repository.RecordStore.
// The file is opened for the duration of each operation only. Ids are assigned under
// an in-process mutex, so a file must have a single writer process at a time.
type RecordJSONL struct {
	path     string
	readOnly bool
	clock    repository.Clock

	mu     sync.Mutex
	closed bool
}

// Option configures a RecordJSONL.
type Option func(*RecordJSONL)

// WithClock overrides the clock used to stamp new records.
func WithClock(c repository.Clock) Option {
	return func(r *RecordJSONL) { r.clock = c }
}

// WithReadOnly rejects inserts and never creates the file.
func WithReadOnly(ro bool) Option {
	return func(r *RecordJSONL) { r.readOnly = ro }
}

// NewRecordJSONL creates a store backed by the file at path.
func NewRecordJSONL(path string, opts ...Option) *RecordJSONL {
	r := &RecordJSONL{path: path, clock: repository.SystemClock}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ repository.RecordStore = (*RecordJSONL)(nil)

func (r *RecordJSONL) fail(op repository.Op, err error) error {
	return repository.NewStorageError(op, Backend, r.path, err)
}

// Initialize creates the parent directory and an empty file if they are absent.
// Existing content is never truncated.
func (r *RecordJSONL) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(ctx); err != nil {
		return r.fail(repository.OpInitialize, err)
	}

	if r.readOnly {
		info, err := os.Stat(r.path)
		if err != nil {
			return r.fail(repository.OpInitialize, err)
		}
		if info.IsDir() {
			return r.fail(repository.OpInitialize, fmt.Errorf("%s is a directory", r.path))
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return r.fail(repository.OpInitialize, fmt.Errorf("create store directory: %w", err))
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return r.fail(repository.OpInitialize, err)
	}
	return r.fail(repository.OpInitialize, f.Close())
}

// Insert appends a record whose id is one greater than the largest stored id.
func (r *RecordJSONL) Insert(ctx context.Context, text string) (model.RecordID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(ctx); err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	if r.readOnly {
		return 0, r.fail(repository.OpInsert, repository.ErrReadOnly)
	}

	f, err := os.OpenFile(r.path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	defer f.Close()

	existing, err := decode(f)
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	var maxID model.RecordID
	for _, rec := range existing {
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}

	rec := newLine(maxID+1, text, model.FormatTimestamp(r.clock()))
	buf, err := json.Marshal(rec)
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	buf = append(buf, '\n')

	terminated, err := endsWithNewline(f)
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	if !terminated {
		buf = append([]byte{'\n'}, buf...)
	}

	if _, err := f.Write(buf); err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	if err := f.Sync(); err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	return rec.ID, nil
}

// ListAll decodes every line in file order. A malformed line fails the call.
func (r *RecordJSONL) ListAll(ctx context.Context) ([]model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(ctx); err != nil {
		return nil, r.fail(repository.OpList, err)
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, r.fail(repository.OpList, err)
	}
	defer f.Close()

	items, err := decode(f)
	if err != nil {
		return nil, r.fail(repository.OpList, err)
	}
	return items, nil
}

// Close marks the store closed. The file has no long-lived handle to release.
func (r *RecordJSONL) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *RecordJSONL) ready(ctx context.Context) error {
	if r.closed {
		return repository.ErrClosed
	}
	return ctx.Err()
}

// endsWithNewline reports whether f is empty or its last byte is a newline.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read last byte: %w", err)
	}
	return last[0] == '\n', nil
}

func decode(rd io.Reader) ([]model.Record, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	items := make([]model.Record, 0)
	n := 0
	for sc.Scan() {
		n++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if l.ID <= 0 {
			return nil, fmt.Errorf("line %d: invalid id %d", n, l.ID)
		}
		createdAt, err := model.ParseTimestamp(l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		text, err := l.text()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		items = append(items, model.Record{ID: l.ID, Text: text, CreatedAt: createdAt})
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d exceeds %d bytes: %w", n+1, maxLineSize, err)
		}
		return nil, err
	}
	return items, nil
}
