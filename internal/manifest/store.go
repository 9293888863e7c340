package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

const backupSuffix = ".backup"

// Store persists a manifest file with numbered backups
type Store struct {
	Path string
}

// NewStore returns a store for the manifest at path
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads and parses the manifest
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, bmerrors.NewFileError("read", s.Path, err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return m, nil
}

// Save writes m if its text differs from the file on disk. The prior text is
// first copied to the first free backup slot, whose path is returned.
func (s *Store) Save(m *Manifest) (string, error) {
	current, err := os.ReadFile(s.Path)
	if err != nil {
		return "", bmerrors.NewFileError("read", s.Path, err)
	}
	if string(current) == m.Text() {
		return "", nil
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return "", bmerrors.NewFileError("stat", s.Path, err)
	}

	backup, err := s.backup(current, info.Mode().Perm())
	if err != nil {
		return "", err
	}
	if err := writeAtomic(s.Path, []byte(m.Text()), info.Mode().Perm()); err != nil {
		return backup, err
	}
	debug.Logger("manifest").Info("manifest saved", zap.String("path", s.Path), zap.String("backup", backup))
	return backup, nil
}

func (s *Store) backup(data []byte, perm os.FileMode) (string, error) {
	for n := 1; ; n++ {
		candidate := s.Path + backupSuffix
		if n > 1 {
			candidate += strconv.Itoa(n)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", bmerrors.NewFileError("backup", candidate, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return "", bmerrors.NewFileError("backup", candidate, werr)
		}
		if cerr != nil {
			return "", bmerrors.NewFileError("backup", candidate, cerr)
		}
		return candidate, nil
	}
}

// Backups lists existing backup files, oldest slot first
func (s *Store) Backups() ([]string, error) {
	matches, err := filepath.Glob(s.Path + backupSuffix + "*")
	if err != nil {
		return nil, err
	}
	type slot struct {
		path string
		n    int
	}
	var slots []slot
	for _, p := range matches {
		suffix := strings.TrimPrefix(p, s.Path+backupSuffix)
		if suffix == "" {
			slots = append(slots, slot{p, 1})
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > 1 {
			slots = append(slots, slot{p, n})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].n < slots[j].n })
	out := make([]string, len(slots))
	for i, sl := range slots {
		out[i] = sl.path
	}
	return out, nil
}

// Restore copies the newest backup over the manifest and removes that backup,
// so repeated restores step back through earlier revisions. Returns the backup used.
func (s *Store) Restore() (string, error) {
	backups, err := s.Backups()
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", bmerrors.NewFileError("restore", s.Path+backupSuffix, bmerrors.ErrNotFound)
	}
	newest := backups[len(backups)-1]
	data, err := os.ReadFile(newest)
	if err != nil {
		return "", bmerrors.NewFileError("read", newest, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(s.Path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := writeAtomic(s.Path, data, perm); err != nil {
		return "", err
	}
	if err := os.Remove(newest); err != nil {
		return newest, bmerrors.NewFileError("remove", newest, err)
	}
	return newest, nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return bmerrors.NewFileError("write", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return bmerrors.NewFileError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return bmerrors.NewFileError("write", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return bmerrors.NewFileError("chmod", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return bmerrors.NewFileError("rename", path, err)
	}
	return nil
}
