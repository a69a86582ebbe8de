// File path: internal/storage/storage.go
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CLARIAH/cattle-druid/internal/common"
)

// StorageError wraps a filesystem failure underneath the workspace store.
// These are fatal to the enclosing request.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store maps (owner, key) tuples onto workspace directories under a shared
// root. Owners are browser-session identifiers or remote usernames; keys are
// content fingerprints or dataset names. Directories are created lazily and
// never removed by the store.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &StorageError{Op: "init", Path: root, Err: fmt.Errorf("empty storage root")}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Path: root, Err: err}
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// Resolve returns the workspace for (owner, key), creating its directory
// tree if absent. Repeated calls with identical inputs yield the same
// workspace.
func (s *Store) Resolve(owner, key string) (Workspace, error) {
	dir := filepath.Join(s.root, SafeName(owner), SafeName(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Workspace{}, &StorageError{Op: "resolve", Path: dir, Err: err}
	}
	return Workspace{dir: dir}, nil
}

// Workspace is a single directory holding one upload group and the artifacts
// derived from it.
type Workspace struct {
	dir string
}

func (w Workspace) Dir() string { return w.dir }

// Path returns the location a file of the given name has inside the
// workspace. The name is flattened to its base, so callers cannot escape the
// directory.
func (w Workspace) Path(name string) string {
	return filepath.Join(w.dir, SafeName(name))
}

func (w Workspace) Exists(name string) bool {
	_, err := os.Stat(w.Path(name))
	return err == nil
}

// WriteOnce stores the reader's bytes under name unless a file already
// exists there, in which case it reports false and leaves the original
// untouched. First-writer-wins keeps duplicate uploads within a retry from
// clobbering each other.
func (w Workspace) WriteOnce(name string, r io.Reader) (bool, error) {
	dest := w.Path(name)
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			common.Logger().Debug("storage: file already present, skipping write", "path", dest)
			return false, nil
		}
		return false, &StorageError{Op: "create", Path: dest, Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return false, &StorageError{Op: "write", Path: dest, Err: err}
	}
	if err := f.Close(); err != nil {
		return false, &StorageError{Op: "close", Path: dest, Err: err}
	}
	return true, nil
}

// SafeName reduces an externally supplied name to a single flat path
// component. Names that would address the directory itself or its parent
// ("." and "..", or anything reducing to only dots) come back as "_".
func SafeName(name string) string {
	name = filepath.Base(filepath.Clean(strings.TrimSpace(name)))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}
