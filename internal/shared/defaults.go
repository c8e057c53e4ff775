// Package shared is the cross-process key/value store the app writes and the
// widget host reads. It plays the role of an app-group preferences suite: one
// directory per suite, one file per key.
package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSuite is the suite name shared by the app and the widget.
const DefaultSuite = "group.com.SaebyeokD"

// Defaults is a file-backed suite.
//
// Writes go through a temp file + rename in the same directory so a reader in
// another process sees either the old value or the new one, never a torn
// write. There is no file locking. One-shot CLI processes and serve may both
// write the snapshot; each CLI write is followed by a reload request, and serve
// reconciles after every external reload by rewriting the full list from the
// event database, which wins over any stale write in between.
type Defaults struct {
	dir string
}

// Open returns the suite rooted at baseDir/suite, creating it if needed.
func Open(baseDir, suite string) (*Defaults, error) {
	if baseDir == "" {
		return nil, errors.New("shared: base dir is empty")
	}
	if suite == "" {
		suite = DefaultSuite
	}
	dir := filepath.Join(baseDir, suite)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("shared: create suite dir: %w", err)
	}
	return &Defaults{dir: dir}, nil
}

// Dir is the suite directory.
func (d *Defaults) Dir() string { return d.dir }

// Data returns the stored value for key. ok is false when the key was never set.
func (d *Defaults) Data(key string) (value []byte, ok bool, err error) {
	path, err := d.pathFor(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("shared: read %s: %w", key, err)
	}
	return b, true, nil
}

// Set stores value under key atomically.
func (d *Defaults) Set(key string, value []byte) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("shared: create temp: %w", err)
	}
	tmpName := tmp.Name()
	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("shared: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("shared: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shared: close %s: %w", key, err)
	}
	// 위젯 프로세스가 읽을 수 있도록 0644.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("shared: chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("shared: rename %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (d *Defaults) Remove(key string) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("shared: remove %s: %w", key, err)
	}
	return nil
}

func (d *Defaults) pathFor(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("shared: invalid key %q", key)
	}
	return filepath.Join(d.dir, key+".json"), nil
}
