package kv

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// Repair compacts the Badger database at path and reclaims value log space.
// It is safe to run repeatedly, but not while another process holds the
// database open.
func Repair(path string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default().WithPrefix("repair")
	}

	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(badgerLogger{logger}))
	if err != nil {
		return fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	defer db.Close()

	logger.Info("flattening", "path", path)
	if err := db.Flatten(runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to flatten %q: %w", path, err)
	}

	rewrites := 0
	for {
		err := db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("value log gc on %q: %w", path, err)
		}
		rewrites++
	}
	logger.Info("repaired", "path", path, "value_log_rewrites", rewrites)
	return nil
}
