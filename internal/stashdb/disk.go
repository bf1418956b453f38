package stashdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vtstore/internal/datafile"
	"vtstore/internal/list"
)

// Store file versions:
//
//	1  guid section time deleted fields
//	2  guid section operation time deleted fields
const StoreVersion = 2

const (
	tagInt    = "i"
	tagFloat  = "f"
	tagString = "s"
	tagBool   = "b"
	tagTime   = "t"
)

var (
	ErrStoreVersion   = errors.New("unsupported store version")
	ErrStoreTruncated = errors.New("store file truncated")
	ErrStoreCorrupt   = errors.New("store file corrupt")
)

func (s *Stash) snapshot() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Record, 0, len(s.index))
	for node := s.records.Head(); node != nil; node = node.Next() {
		rec := node.Value.copy()
		ret = append(ret, &rec)
	}
	return ret
}

// SaveToDisk save data to disk. Concurrent calls share one save.
func (s *Stash) SaveToDisk(ctx context.Context) error {
	_, err, shared := s.saveSFG.Do("save", func() (interface{}, error) {
		return nil, s.save(ctx)
	})
	if shared {
		s.sugar.Debugw("save shared", "file", s.conf.StoreFile)
	}
	return err
}

func (s *Stash) save(ctx context.Context) error {
	const msg = "save:"
	records := s.snapshot()

	if dir := filepath.Dir(s.conf.StoreFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
	}

	out, err := datafile.OpenOutput(s.conf.StoreFile, StoreVersion, s.conf.Compress,
		datafile.WithLogger(s.sugar.Desugar()))
	if err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}

	var res datafile.Result
	res.Add(out.WriteInt(len(records), true))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			_ = out.Abort()
			return err
		}
		writeRecord(out, rec, &res)
	}

	if err := res.Err(); err != nil {
		_ = out.Abort()
		return fmt.Errorf("%s %d failed writes: %w", msg, res.Failed, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}

	s.sugar.Infow("saved", "file", s.conf.StoreFile, "records", len(records))
	return nil
}

// writeRecord writes every field of rec, failures are collected in res
func writeRecord(out *datafile.OutputFile, rec *Record, res *datafile.Result) {
	res.Add(out.WriteString(string(rec.Guid), false))
	res.Add(out.WriteInt(int(rec.Section), false))
	res.Add(out.WriteString(string(rec.Operation), false))
	res.Add(out.WriteTime(rec.OpTime, false))
	res.Add(out.WriteBool(rec.Deleted, false))

	names := make([]string, 0, len(rec.Data))
	for name := range rec.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	res.Add(out.WriteInt(len(names), len(names) == 0))
	for i, name := range names {
		last := i == len(names)-1
		res.Add(out.WriteString(name, false))

		switch v := rec.Data[name].(type) {
		case int64:
			res.Add(out.WriteString(tagInt, false))
			res.Add(out.WriteInt64(v, last))
		case float64:
			res.Add(out.WriteString(tagFloat, false))
			res.Add(out.WriteFloat(v, last))
		case string:
			res.Add(out.WriteString(tagString, false))
			res.Add(out.WriteString(v, last))
		case bool:
			res.Add(out.WriteString(tagBool, false))
			res.Add(out.WriteBool(v, last))
		case time.Time:
			res.Add(out.WriteString(tagTime, false))
			res.Add(out.WriteTime(v, last))
		default:
			res.Add(fmt.Errorf("%w: %s is %T", ErrFieldType, name, v))
		}
	}
}

// LoadFromDisk replaces the stash content with the store file
func (s *Stash) LoadFromDisk() error {
	const msg = "load:"
	in, err := datafile.OpenInput(s.conf.StoreFile, datafile.WithLogger(s.sugar.Desugar()))
	if err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	defer in.Close()

	if in.Version() < 1 || in.Version() > StoreVersion {
		return fmt.Errorf("%s %w: %d", msg, ErrStoreVersion, in.Version())
	}

	count, err := in.ReadInt()
	if err != nil {
		return fmt.Errorf("%s record count: %w", msg, err)
	}
	if count < 0 {
		return fmt.Errorf("%s %w: record count %d", msg, ErrStoreCorrupt, count)
	}

	records := list.NewDList[*Record]()
	index := make(map[GUIDType]*list.Node[*Record])
	for i := 0; i < count; i++ {
		rec, err := readRecord(in)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", msg, i, err)
		}
		if in.EOF() {
			return fmt.Errorf("%s record %d: %w", msg, i, ErrStoreTruncated)
		}

		node := list.NewNode(rec)
		if err := records.AddToTail(node); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if !rec.Deleted {
			index[rec.Guid] = node
		}
	}

	s.mu.Lock()
	s.records.Purge()
	s.records = records
	s.index = index
	s.mu.Unlock()

	s.sugar.Infow("restored", "file", s.conf.StoreFile, "version", in.Version(),
		"records", count, "live", len(index), "compression", in.Compression())
	return nil
}

func readRecord(in *datafile.InputFile) (*Record, error) {
	var (
		guid    string
		section int
		count   int
	)
	rec := &Record{Operation: InsertOperation}

	if err := in.Read(&guid); err != nil {
		return nil, err
	}
	rec.Guid = GUIDType(guid)
	if err := in.Read(&section); err != nil {
		return nil, err
	}
	rec.Section = SectionIdType(section)
	if in.Version() >= 2 {
		var op string
		if err := in.Read(&op); err != nil {
			return nil, err
		}
		rec.Operation = OperationType(op)
	}
	if err := in.Read(&rec.OpTime); err != nil {
		return nil, err
	}
	if err := in.Read(&rec.Deleted); err != nil {
		return nil, err
	}
	if err := in.Read(&count); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: field count %d", ErrStoreCorrupt, count)
	}

	rec.Data = make(map[string]any, count)
	for i := 0; i < count; i++ {
		name, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		tag, err := in.ReadString()
		if err != nil {
			return nil, err
		}

		var value any
		switch tag {
		case tagInt:
			value, err = in.ReadInt64()
		case tagFloat:
			value, err = in.ReadFloat()
		case tagString:
			value, err = in.ReadString()
		case tagBool:
			value, err = in.ReadBool()
		case tagTime:
			value, err = in.ReadTime()
		default:
			return nil, fmt.Errorf("%w: tag %q of %s", ErrFieldType, tag, name)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		rec.Data[name] = value
	}
	return rec, nil
}
