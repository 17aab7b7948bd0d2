package tracker

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/osvaldoandrade/xebench/internal/fileutil"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

func writeSnapshot(path string, run domain.WorkerRun) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file written by a tracker.
func ReadSnapshot(path string) (domain.WorkerRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.WorkerRun{}, fmt.Errorf("read snapshot: %w", err)
	}
	var run domain.WorkerRun
	if err := json.Unmarshal(data, &run); err != nil {
		return domain.WorkerRun{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if run.Timestamp.IsZero() {
		return domain.WorkerRun{}, fmt.Errorf("parse snapshot %s: missing timestamp", path)
	}
	return run, nil
}
