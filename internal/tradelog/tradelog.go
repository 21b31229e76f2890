// Package tradelog keeps the append-only ledger of closed trades.
package tradelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Record is one closed trade. Every position removal writes exactly one
// record; an aborted entry cycle writes none.
type Record struct {
	OrderID     string    `json:"order_id"`
	Market      string    `json:"market"`
	Strategy    string    `json:"strategy"`
	Strikes     []float64 `json:"strikes"`
	Quantity    int       `json:"quantity"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	EntryCredit float64   `json:"entry_credit"`
	ExitValue   float64   `json:"exit_value"`
	ExitReason  string    `json:"exit_reason"`
	ProfitLoss  float64   `json:"profit_loss"` // per contract, points
}

// Logger appends records to a JSONL file.
type Logger struct {
	path string
}

func New(path string) *Logger {
	return &Logger{path: path}
}

// Append writes one record. The file is opened O_APPEND so concurrent
// appenders interleave whole lines.
func (l *Logger) Append(r Record) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("creating trade log directory: %w", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding trade record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening trade log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending trade record: %w", err)
	}
	return nil
}

// ReadAll returns every record in the ledger, oldest first.
func (l *Logger) ReadAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trade log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decoding trade record: %w", err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trade log: %w", err)
	}
	return records, nil
}

// Today filters the ledger to trades closed on now's date in loc.
func (l *Logger) Today(now time.Time, loc *time.Location) ([]Record, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	y, m, d := now.In(loc).Date()
	var out []Record
	for _, r := range all {
		ry, rm, rd := r.ExitTime.In(loc).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out, nil
}

// Archive gzips the current ledger to <path>.<date>.gz and truncates it.
// Called between sessions, never while the monitor is mid-sweep.
func (l *Logger) Archive(date string) error {
	src, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening trade log for archive: %w", err)
	}
	defer func() { _ = src.Close() }()

	archivePath := fmt.Sprintf("%s.%s.gz", l.path, date)
	tmpPath := archivePath + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	gz := gzip.NewWriter(dst)
	_, copyErr := io.Copy(gz, src)
	if err := gz.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if err := dst.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing archive: %w", copyErr)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return os.Truncate(l.path, 0)
}
