package persist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/wardsim/wardsim/internal/nav"
)

// PathLog is an append-only file of path-cache records. Each line is
//
//	<hex blake2b-256 of payload> <json payload>
//
// A torn or corrupt tail (crash mid-append) is cut off on Load, so at most the
// in-flight record is lost. Read failures leave the file untouched.
type PathLog struct {
	path    string
	maxLine int
	log     *zap.Logger
}

func NewPathLog(path string, log *zap.Logger) *PathLog {
	return &PathLog{path: path, maxLine: maxLine, log: log}
}

// maxLine bounds one encoded record; long routes on fine grids reach a few hundred KB.
const maxLine = 16 << 20

// Load reads all intact records. A missing file is an empty log.
func (l *PathLog) Load(_ context.Context) ([]nav.Record, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		recs  []nav.Record
		valid int64
		line  int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, min(64*1024, l.maxLine)), l.maxLine)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		rec, err := decodeLine(raw)
		if err != nil {
			l.log.Warn("path log corrupt, truncating",
				zap.String("file", l.path), zap.Int("line", line), zap.Error(err))
			return recs, l.truncate(valid)
		}
		recs = append(recs, rec)
		valid += int64(len(raw)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read path log %s line %d: %w", l.path, line+1, err)
	}
	if info, err := f.Stat(); err == nil && valid == info.Size()+1 {
		// last record intact but its newline never made it to disk
		if err := l.terminate(); err != nil {
			return recs, err
		}
	}
	return recs, nil
}

// Append writes recs and fsyncs before returning.
func (l *PathLog) Append(_ context.Context, recs []nav.Record) error {
	var buf bytes.Buffer
	for _, rec := range recs {
		if err := encodeLine(&buf, rec); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create path log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Compact rewrites the log with exactly recs, atomically replacing the old file.
func (l *PathLog) Compact(_ context.Context, recs []nav.Record) error {
	var buf bytes.Buffer
	for _, rec := range recs {
		if err := encodeLine(&buf, rec); err != nil {
			return err
		}
	}
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func (l *PathLog) truncate(size int64) error {
	if err := os.Truncate(l.path, size); err != nil {
		return fmt.Errorf("truncate path log: %w", err)
	}
	return nil
}

func (l *PathLog) terminate() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeLine(buf *bytes.Buffer, rec nav.Record) error {
	rec.Path = routeOrEmpty(rec.Path)
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	sum := blake2b.Sum256(payload)
	buf.WriteString(hex.EncodeToString(sum[:]))
	buf.WriteByte(' ')
	buf.Write(payload)
	buf.WriteByte('\n')
	return nil
}

func decodeLine(raw []byte) (nav.Record, error) {
	var rec nav.Record
	sumHex, payload, ok := bytes.Cut(raw, []byte{' '})
	if !ok {
		return rec, errors.New("missing checksum separator")
	}
	want, err := hex.DecodeString(string(sumHex))
	if err != nil || len(want) != blake2b.Size256 {
		return rec, errors.New("malformed checksum")
	}
	got := blake2b.Sum256(payload)
	if !bytes.Equal(want, got[:]) {
		return rec, errors.New("checksum mismatch")
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
