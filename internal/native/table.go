package native

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Row file layout: a sequence of records, each a tombstone byte (0 live,
// 1 deleted) followed by the column values in schema order. Ints and floats
// are 8 little-endian bytes, chars 4 (the code point), strings an 8-byte
// length prefix plus UTF-8 bytes. Updates append the new record and
// tombstone the old; the file compacts on the next full rewrite.
const (
	recordLive    byte = 0
	recordDeleted byte = 1
)

// tableFile is an open row file plus the column layout needed to decode it.
type tableFile struct {
	columns []types.Column
	f       *os.File
}

// record is one decoded row and where its tombstone byte lives.
type record struct {
	offset int64
	live   bool
	row    types.Row
}

func openTableFile(path string, columns []types.Column) (*tableFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, storageErr("opening table file", err)
	}
	return &tableFile{columns: columns, f: f}, nil
}

func (t *tableFile) close() error {
	return t.f.Close()
}

func (t *tableFile) sync() error {
	if err := t.f.Sync(); err != nil {
		return storageErr("syncing table file", err)
	}
	return nil
}

// readAll decodes the whole file. Tombstoned records are returned with
// live=false so callers can skip them while offsets stay accurate.
func (t *tableFile) readAll() ([]record, error) {
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return nil, storageErr("seeking table file", err)
	}
	data, err := io.ReadAll(t.f)
	if err != nil {
		return nil, storageErr("reading table file", err)
	}

	var records []record
	r := bytes.NewReader(data)
	for {
		offset := int64(len(data)) - int64(r.Len())
		flag, err := r.ReadByte()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, storageErr("reading record flag", err)
		}
		row := make(types.Row, len(t.columns))
		for _, c := range t.columns {
			v, err := decodeValue(r, c.Type)
			if err != nil {
				return nil, err
			}
			row[c.Name] = v
		}
		records = append(records, record{offset: offset, live: flag == recordLive, row: row})
	}
}

// append encodes and appends one row, then syncs.
func (t *tableFile) append(row types.Row) error {
	if err := t.appendNoSync(row); err != nil {
		return err
	}
	return t.sync()
}

// appendNoSync appends without syncing; update batches the sync.
func (t *tableFile) appendNoSync(row types.Row) error {
	var buf bytes.Buffer
	buf.WriteByte(recordLive)
	for _, c := range t.columns {
		value, ok := row[c.Name]
		if !ok {
			return fmt.Errorf("row missing column %q: %w", c.Name, types.ErrIncompleteRow)
		}
		if err := encodeValue(&buf, value); err != nil {
			return err
		}
	}
	if _, err := t.f.Seek(0, io.SeekEnd); err != nil {
		return storageErr("seeking table file", err)
	}
	if _, err := t.f.Write(buf.Bytes()); err != nil {
		return storageErr("appending record", err)
	}
	return nil
}

// tombstone marks the record at offset deleted in place.
func (t *tableFile) tombstone(offset int64) error {
	if _, err := t.f.WriteAt([]byte{recordDeleted}, offset); err != nil {
		return storageErr("tombstoning record", err)
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, v types.Value) error {
	switch v.Type() {
	case types.TypeInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int()))
		buf.Write(b[:])
	case types.TypeFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float()))
		buf.Write(b[:])
	case types.TypeChar:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.Char()))
		buf.Write(b[:])
	case types.TypeString:
		s := v.Str()
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(len(s)))
		buf.Write(b[:])
		buf.WriteString(s)
	default:
		return fmt.Errorf("cannot store %s value: %w", v.Type(), types.ErrTypeMismatch)
	}
	return nil
}

func decodeValue(r *bytes.Reader, dt types.DataType) (types.Value, error) {
	switch dt {
	case types.TypeInt:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return types.Value{}, storageErr("decoding int cell", err)
		}
		return types.IntValue(int64(binary.LittleEndian.Uint64(b[:]))), nil
	case types.TypeFloat:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return types.Value{}, storageErr("decoding float cell", err)
		}
		v, err := types.FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(b[:])))
		if err != nil {
			return types.Value{}, fmt.Errorf("corrupt float cell: %w", types.ErrStorage)
		}
		return v, nil
	case types.TypeChar:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return types.Value{}, storageErr("decoding char cell", err)
		}
		return types.CharValue(rune(binary.LittleEndian.Uint32(b[:]))), nil
	case types.TypeString:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return types.Value{}, storageErr("decoding string length", err)
		}
		n := binary.LittleEndian.Uint64(b[:])
		if n > uint64(r.Len()) {
			return types.Value{}, fmt.Errorf("string cell length %d overruns file: %w", n, types.ErrStorage)
		}
		s := make([]byte, n)
		if _, err := io.ReadFull(r, s); err != nil {
			return types.Value{}, storageErr("decoding string cell", err)
		}
		return types.StringValue(string(s)), nil
	default:
		return types.Value{}, fmt.Errorf("cannot decode %s cell: %w", dt, types.ErrStorage)
	}
}
