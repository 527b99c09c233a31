package secrets

import (
	"encoding/hex"
	"os"
	"time"
)

func encodeHex(b []byte) string { return hex.EncodeToString(b) }

func decodeHex(s string) ([]byte, error) { return hex.DecodeString(s) }

// lockFile takes an advisory exclusive lock by atomically creating a
// lock file, retrying with backoff. Returns an unlock func that removes
// the lock file. Grounded on spec.md §4.5/§5's "written under a file
// lock (exclusive)" requirement.
func lockFile(path string) (func(), error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(20 * time.Millisecond)
	}
}
