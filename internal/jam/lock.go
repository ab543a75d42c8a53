package jam

import (
	"fmt"
	"os"
	"time"
)

var (
	lockRetry = 200 * time.Millisecond
	lockWait  = 30 * time.Second
	lockStale = 10 * time.Minute
)

// lock takes the .bsy file other JAM programs check before writing. The
// returned func removes it.
func (b *Base) lock() (func(), error) {
	path := b.path + ".bsy"
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "pid=%d time=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("jam: lock %s: %w", path, err)
		}
		if fi, err := os.Stat(path); err == nil && time.Since(fi.ModTime()) > lockStale {
			os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("jam: timeout waiting for lock %s", path)
		}
		time.Sleep(lockRetry)
	}
}
