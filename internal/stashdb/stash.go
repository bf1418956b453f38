package stashdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vtstore/internal/config"
	"vtstore/internal/list"
)

type OperationType string
type GUIDType string
type SectionIdType byte

const (
	InsertOperation OperationType = "insert"
	UpdateOperation OperationType = "update"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrFieldName      = errors.New("invalid field name")
	ErrFieldType      = errors.New("unsupported field type")
	ErrFieldValue     = errors.New("invalid field value")
)

// Record is one stored entry. Data values are int64, float64, string, bool
// or time.Time (UTC, whole seconds).
type Record struct {
	Guid      GUIDType
	Section   SectionIdType
	Operation OperationType
	OpTime    time.Time
	Deleted   bool
	Data      map[string]any
}

func (r *Record) copy() Record {
	ret := *r
	ret.Data = make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		ret.Data[k] = v
	}
	return ret
}

// Stash keeps records in insertion order and persists them to one data file.
// Removed records stay as tombstones until Compact.
type Stash struct {
	mu      sync.RWMutex
	records *list.DList[*Record]
	index   map[GUIDType]*list.Node[*Record]

	saveSFG singleflight.Group

	conf  *config.Config
	sugar *zap.SugaredLogger
}

// NewStash creates the stash and, if configured, restores it from disk.
// A missing store file is not an error.
func NewStash(conf *config.Config, logger *zap.Logger) (*Stash, error) {
	s := &Stash{
		records: list.NewDList[*Record](),
		index:   make(map[GUIDType]*list.Node[*Record]),
		conf:    conf,
		sugar:   logger.Sugar(),
	}

	if conf.Restore {
		err := s.LoadFromDisk()
		if errors.Is(err, os.ErrNotExist) {
			s.sugar.Infow("nothing to restore", "file", conf.StoreFile)
			return s, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// normalize checks field names and converts values to the stored types
func normalize(data map[string]any) (map[string]any, error) {
	ret := make(map[string]any, len(data))
	for name, value := range data {
		if name == "" || strings.ContainsAny(name, "_~ \t\r\n\v\f") {
			return nil, fmt.Errorf("%w: %q", ErrFieldName, name)
		}
		switch v := value.(type) {
		case int:
			ret[name] = int64(v)
		case int32:
			ret[name] = int64(v)
		case int64:
			ret[name] = v
		case float32:
			ret[name] = float64(v)
		case float64:
			ret[name] = v
		case bool:
			ret[name] = v
		case string:
			// '_' and '~' do not survive the store file escaping
			if strings.ContainsAny(v, "_~\t\r\n\v\f") {
				return nil, fmt.Errorf("%w: %q", ErrFieldValue, name)
			}
			ret[name] = v
		case time.Time:
			if v.IsZero() {
				ret[name] = time.Time{}
			} else {
				ret[name] = v.UTC().Truncate(time.Second)
			}
		default:
			return nil, fmt.Errorf("%w: %s is %T", ErrFieldType, name, value)
		}
	}
	return ret, nil
}

// Len returns the number of live records
func (s *Stash) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.index)
}

// Insert data
func (s *Stash) Insert(section SectionIdType, data map[string]any) (GUIDType, error) {
	fields, err := normalize(data)
	if err != nil {
		return "", err
	}

	rec := &Record{
		Guid:      GUIDType(uuid.New().String()),
		Section:   section,
		Operation: InsertOperation,
		OpTime:    now(),
		Data:      fields,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := list.NewNode(rec)
	if err := s.records.AddToTail(node); err != nil {
		return "", err
	}
	s.index[rec.Guid] = node

	s.sugar.Debugw("insert", "Guid", rec.Guid, "section", section, "fields", len(fields))
	return rec.Guid, nil
}

// Get data
func (s *Stash) Get(guid GUIDType) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.index[guid]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return node.Value.copy().Data, nil
}

// Update replaces the record data and moves it to the end
func (s *Stash) Update(guid GUIDType, data map[string]any) error {
	fields, err := normalize(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.index[guid]
	if !ok {
		return ErrRecordNotFound
	}
	if err := s.records.Remove(node); err != nil {
		return err
	}
	node.Value.Data = fields
	node.Value.Operation = UpdateOperation
	node.Value.OpTime = now()
	if err := s.records.AddToTail(node); err != nil {
		return err
	}

	s.sugar.Debugw("update", "Guid", guid)
	return nil
}

// Remove marks the record deleted
func (s *Stash) Remove(guid GUIDType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.index[guid]
	if !ok {
		return ErrRecordNotFound
	}
	node.Value.Deleted = true
	node.Value.OpTime = now()
	delete(s.index, guid)

	s.sugar.Debugw("remove", "Guid", guid)
	return nil
}

// Compact drops tombstones, returns how many were dropped
func (s *Stash) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for node := s.records.Head(); node != nil; {
		next := node.Next()
		if node.Value.Deleted {
			if err := s.records.RemoveSafe(node); err != nil {
				s.sugar.Errorw("compact", "Guid", node.Value.Guid, "err", err)
			} else {
				dropped++
			}
		}
		node = next
	}
	return dropped
}

// Find returns copies of the live records in section that f accepts.
// f returns (accept, stop).
func (s *Stash) Find(ctx context.Context, section SectionIdType, f func(map[string]any) (bool, bool)) ([]Record, error) {
	var found []Record

	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.records.Iterator()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := it.Value()
		if rec.Deleted || rec.Section != section {
			continue
		}

		ok, stop := true, false
		if f != nil {
			ok, stop = f(rec.Data)
		}
		if ok {
			found = append(found, rec.copy())
		}
		if stop {
			break
		}
	}
	return found, nil
}

// Exists reports whether a live record in section holds exactly data
func (s *Stash) Exists(section SectionIdType, data map[string]any) bool {
	fields, err := normalize(data)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	want := &Record{Section: section, Data: fields}
	return s.records.Exists(want, sameContent)
}

func sameContent(a, b *Record) bool {
	if a.Deleted || b.Deleted || a.Section != b.Section || len(a.Data) != len(b.Data) {
		return false
	}
	for k, v := range a.Data {
		w, ok := b.Data[k]
		if !ok {
			return false
		}
		if t, isTime := v.(time.Time); isTime {
			u, ok := w.(time.Time)
			if !ok || !t.Equal(u) {
				return false
			}
			continue
		}
		if v != w {
			return false
		}
	}
	return true
}

// Sorted reorders the stash by operation time and returns the live records.
// Records with the same time keep their relative order.
func (s *Stash) Sorted() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records.Sort(func(a, b *Record) int {
		return a.OpTime.Compare(b.OpTime)
	})

	ret := make([]Record, 0, len(s.index))
	for node := s.records.Head(); node != nil; node = node.Next() {
		if !node.Value.Deleted {
			ret = append(ret, node.Value.copy())
		}
	}
	return ret
}

// Run saves the stash every StoreInterval until ctx is done
func (s *Stash) Run(ctx context.Context) error {
	if s.conf.StoreInterval == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.conf.StoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SaveToDisk(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.sugar.Errorw("periodic save", "file", s.conf.StoreFile, "err", err)
			}
		}
	}
}
