package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const entryPrefix = "entry/"

// Entry is one finished dictation.
type Entry struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Language        string    `json:"language"`
	Model           string    `json:"model"`
	Engine          string    `json:"engine"`
	DurationSeconds float64   `json:"duration_seconds"`
	Confidence      float64   `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
}

// Options tune retention. Zero values mean keep everything.
type Options struct {
	RetentionDays int
	MaxEntries    int
}

// Store persists transcripts in a local badger database. Writes happen
// on the orchestrator's sink path, so they must stay quick; reads are
// interactive (history listing and search).
type Store struct {
	db   *badger.DB
	opts Options
}

// Open creates or opens the database under dir.
func Open(dir string, opts Options) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Join(dir, "history")).
		WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one entry, assigning ID and timestamp when absent.
// Entries age out via TTL when retention is configured; the count cap
// is enforced by pruning oldest-first.
func (s *Store) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	key := entryKey(e.CreatedAt, e.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		ent := badger.NewEntry(key, val)
		if s.opts.RetentionDays > 0 {
			ent = ent.WithTTL(time.Duration(s.opts.RetentionDays) * 24 * time.Hour)
		}
		return txn.SetEntry(ent)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}
	if s.opts.MaxEntries > 0 {
		if err := s.prune(); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Reverse = true
		opt.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opt)
		defer it.Close()

		// Reverse iteration needs a seek point past every entry key.
		for it.Seek([]byte(entryPrefix + "\xff")); it.Valid() && len(out) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			})
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Search scans transcripts for a case-insensitive substring, newest
// first, up to limit matches.
func (s *Store) Search(query string, limit int) ([]Entry, error) {
	query = strings.ToLower(query)
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Reverse = true
		opt.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opt)
		defer it.Close()

		for it.Seek([]byte(entryPrefix + "\xff")); it.Valid() && len(out) < limit; it.Next() {
			var e Entry
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			})
			if err != nil {
				return err
			}
			if strings.Contains(strings.ToLower(e.Text), query) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.PrefetchValues = false
		opt.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opt)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear drops every entry.
func (s *Store) Clear() error {
	if err := s.db.DropPrefix([]byte(entryPrefix)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// prune deletes oldest entries until the count cap holds.
func (s *Store) prune() error {
	count, err := s.Count()
	if err != nil {
		return err
	}
	excess := count - s.opts.MaxEntries
	if excess <= 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.PrefetchValues = false
		opt.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opt)
		defer it.Close()
		for it.Rewind(); it.Valid() && excess > 0; it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// entryKey orders lexicographically by time, so forward iteration is
// oldest-first and reverse is newest-first.
func entryKey(ts time.Time, id string) []byte {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return []byte(fmt.Sprintf("%s%020d/%s", entryPrefix, ts.UnixNano(), suffix))
}
