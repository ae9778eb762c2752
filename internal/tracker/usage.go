package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/model"
)

// UsageLog is the per-day JSONL file of tool invocations.
type UsageLog struct {
	dir         string
	lockTimeout time.Duration
}

// NewUsageLog creates a usage log rooted at dir.
func NewUsageLog(dir string, lockTimeout time.Duration) *UsageLog {
	return &UsageLog{dir: dir, lockTimeout: lockTimeout}
}

// Path returns the usage file for date (YYYY-MM-DD).
func (u *UsageLog) Path(date string) string {
	return filepath.Join(u.dir, date+".jsonl")
}

// Append writes rec as one line under an exclusive lock.
func (u *UsageLog) Append(ctx context.Context, rec model.ToolInvocationRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}
	line = append(line, '\n')

	path := u.Path(rec.Timestamp.UTC().Format(model.DateLayout))
	return fsutil.Retry(ctx, 50*time.Millisecond, func() error {
		f, err := fsutil.OpenLocked(ctx, path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644, u.lockTimeout)
		if err != nil {
			return err
		}
		defer f.Close()
		defer fsutil.Unlock(f)

		if _, err := f.Write(line); err != nil {
			return errclass.ErrIO.Wrap(err, "write usage record")
		}
		if err := f.Sync(); err != nil {
			return errclass.ErrIO.Wrap(err, "sync usage log")
		}
		return nil
	})
}

// Read returns the records for date. Malformed lines are skipped and a
// missing file yields no records.
func (u *UsageLog) Read(date string) ([]model.ToolInvocationRecord, error) {
	f, err := os.Open(u.Path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "open usage log")
	}
	defer f.Close()

	var records []model.ToolInvocationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec model.ToolInvocationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "scan usage log")
	}
	return records, nil
}
