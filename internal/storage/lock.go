package storage

import (
	"os"
	"sync"
	"syscall"
)

// FileLock serializes writers to one document, within and across processes.
type FileLock struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLock creates a lock guarding path. The lock file is path + ".lock".
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock blocks until the exclusive lock is held.
func (l *FileLock) Lock() error {
	l.mu.Lock()

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return err
	}
	l.file = f
	return nil
}

// Unlock releases the lock and removes the lock file.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path + ".lock")
	l.file = nil
	l.mu.Unlock()
	return err
}
