package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IncludePrefix addresses include fragments: a file named
// "include/allow-all" lives in the include directory and may not itself
// use !include.
const IncludePrefix = "include/"

// Store is the backing storage for policy files. Write must be atomic:
// after any failure the previous content is still intact.
type Store interface {
	Read(name string) (string, error)
	Write(name, content string) error
	List() ([]string, error)
}

// DirStore keeps top-level policy files in Dir and include fragments in
// IncludeDir, addressed with the include/ name prefix.
type DirStore struct {
	Dir        string
	IncludeDir string
}

func (s *DirStore) path(name string) (string, error) {
	if rest, ok := strings.CutPrefix(name, IncludePrefix); ok {
		if s.IncludeDir == "" {
			return "", fmt.Errorf("no include directory configured for %q", name)
		}
		return filepath.Join(s.IncludeDir, rest), nil
	}
	return filepath.Join(s.Dir, name), nil
}

func (s *DirStore) Read(name string) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy %s: %w", name, err)
	}
	return string(data), nil
}

// Write replaces the named file all-or-nothing: the content goes to a
// temporary file in the target directory, is flushed to disk, and is then
// renamed over the target. The temporary file is removed on every failure
// path, leaving the original untouched.
func (s *DirStore) Write(name, content string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".policy-*")
	if err != nil {
		return fmt.Errorf("create temporary policy file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write policy %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync policy %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary policy file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod policy %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace policy %s: %w", name, err)
	}
	return nil
}

func (s *DirStore) List() ([]string, error) {
	names, err := listDir(s.Dir, "")
	if err != nil {
		return nil, err
	}
	if s.IncludeDir != "" {
		includes, err := listDir(s.IncludeDir, IncludePrefix)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		names = append(names, includes...)
	}
	sort.Strings(names)
	return names, nil
}

func listDir(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, prefix+entry.Name())
	}
	return names, nil
}
