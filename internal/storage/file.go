package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "menunotice/pkg/logx"

	"github.com/gofrs/flock"
)

// fileStore is an append-only JSON Lines journal.
//
// Files:
//   - <prefix>.journal.jsonl (one Entry per line)
//   - <prefix>.journal.lock  (advisory lock shared with other processes)
//
// Writers take the exclusive lock, readers the shared one, so `history` can
// read while `run` appends. When Retain is set the journal is compacted to the
// newest Retain entries every compactEvery appends.
type fileStore struct {
	log    logx.Logger
	path   string
	lock   *flock.Flock
	retain int

	mu     sync.Mutex
	f      *os.File
	size   int64 // journal size after our last write
	nextID int64
	writes int
}

const compactEvery = 200

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:    log,
		path:   prefix + ".journal.jsonl",
		lock:   flock.New(prefix + ".journal.lock"),
		retain: max(cfg.Retain, 0),
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	if err := s.reopenLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// reopenLocked (re)opens the journal and recomputes the next ID. The caller
// holds the file lock.
func (s *fileStore) reopenLocked() error {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	entries, err := readJournal(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var last int64
	for _, e := range entries {
		last = max(last, e.ID)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.f = f
	s.size = st.Size()
	s.nextID = last + 1
	return nil
}

// syncLocked reopens when another process appended or compacted since our
// last write.
func (s *fileStore) syncLocked() error {
	onDisk, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.reopenLocked()
		}
		return err
	}
	mine, err := s.f.Stat()
	if err != nil || !os.SameFile(onDisk, mine) || onDisk.Size() != s.size {
		return s.reopenLocked()
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.syncLocked(); err != nil {
		return err
	}
	e.ID = s.nextID
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	n, err := s.f.Write(b)
	s.size += int64(n)
	if err != nil {
		return err
	}
	s.nextID++

	s.writes++
	if s.retain > 0 && s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) List(ctx context.Context, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// One flock handle per store: serialize in-process users before taking it.
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	all, err := readJournal(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if q.match(e) {
			out = append(out, e)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

// compactLocked rewrites the journal with the newest retain entries.
func (s *fileStore) compactLocked() error {
	all, err := readJournal(s.path)
	if err != nil {
		return err
	}
	if len(all) <= s.retain {
		return nil
	}
	keep := all[len(all)-s.retain:]

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range keep {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.log.Debug("journal compacted", logx.Int("kept", len(keep)), logx.Int("dropped", len(all)-len(keep)))
	return s.reopenLocked()
}

// readJournal decodes every well-formed line. Torn or foreign lines are skipped.
func readJournal(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.Kind == "" {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
