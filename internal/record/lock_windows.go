//go:build windows

package record

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

var errLocked = errors.New("lock held by another process")

// staleLockAfter bounds how long an abandoned lock file blocks writers.
const staleLockAfter = 30 * time.Second

type fileLock struct {
	path string
}

func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < staleLockAfter {
			return nil, errLocked
		}
		_ = os.Remove(path)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errLocked
		}
	}
	_ = f.Close()
	return &fileLock{path: path}, nil
}

func (l *fileLock) release() {
	if l == nil {
		return
	}
	_ = os.Remove(l.path)
}
