// Package checksum computes content digests of files, directories and
// structured values.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Path returns the hex MD5 digest of a file's bytes, or of the concatenated
// bytes of every regular file below a directory visited in lexical path
// order. A path that does not exist yields nil and no error.
func Path(path string) (*string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	h := md5.New()
	switch {
	case info.Mode().IsRegular():
		if err := copyFile(h, path); err != nil {
			return nil, err
		}
	case info.IsDir():
		if err := hashDir(h, path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("can't compute checksum of %s: not a file or directory", path)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	return &sum, nil
}

// hashDir feeds every regular file under root into h. WalkDir visits entries
// in lexical order within each directory, which gives a stable order on every
// filesystem.
func hashDir(h io.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			// dangling symlink
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(h, path)
	})
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// Canonical returns the hex MD5 digest of v's JSON encoding. Map keys are
// sorted by encoding/json, so equal values always produce equal digests.
func Canonical(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value for hashing: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
