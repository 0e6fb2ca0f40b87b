package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/google/uuid"
)

const (
	metaFile   = "tree.meta"
	nodeSuffix = ".node"
)

// DirStore keeps every unit in its own file under one directory. Writes go
// to a temporary file that is renamed over the previous unit.
type DirStore struct {
	dir  string
	sync bool
}

// CreateDir creates the directory itself; its parent must exist.
func CreateDir(dir string, opts *Options) (*DirStore, error) {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, errs.StorageInit(err, "storage: create %s", dir)
	}
	return &DirStore{dir: dir, sync: opts.sync()}, nil
}

func OpenDir(dir string, opts *Options) (*DirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errs.Corrupt(err, "storage: no index at %s", dir)
	}
	if !info.IsDir() {
		return nil, errs.Corruptf("storage: %s is not a directory", dir)
	}
	return &DirStore{dir: dir, sync: opts.sync()}, nil
}

func (s *DirStore) Kind() Kind { return KindDir }

func (s *DirStore) Allocate() (NodeID, error) {
	return NodeID(uuid.NewString()), nil
}

func (s *DirStore) ReadNode(id NodeID) ([]byte, error) {
	path, err := s.nodePath(id)
	if err != nil {
		return nil, err
	}
	return s.read(path, "node "+string(id))
}

func (s *DirStore) WriteNode(id NodeID, unit []byte) error {
	path, err := s.nodePath(id)
	if err != nil {
		return err
	}
	return s.write(path, unit)
}

func (s *DirStore) ReadMeta() ([]byte, error) {
	return s.read(filepath.Join(s.dir, metaFile), "metadata")
}

func (s *DirStore) WriteMeta(unit []byte) error {
	return s.write(filepath.Join(s.dir, metaFile), unit)
}

func (s *DirStore) Close() error { return nil }

func (s *DirStore) nodePath(id NodeID) (string, error) {
	if id == "" || strings.ContainsAny(string(id), `/\.`) {
		return "", errs.Corruptf("storage: invalid node id %q", id)
	}
	return filepath.Join(s.dir, string(id)+nodeSuffix), nil
}

func (s *DirStore) read(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errs.Corrupt(err, "storage: %s missing", what)
	}
	if err != nil {
		return nil, errs.IO(err, "storage: read %s", what)
	}
	return data, nil
}

func (s *DirStore) write(path string, unit []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.IO(err, "storage: open %s", tmp)
	}
	if _, err := f.Write(unit); err != nil {
		f.Close()
		return errs.IO(err, "storage: write %s", tmp)
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return errs.IO(err, "storage: sync %s", tmp)
		}
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "storage: close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.IO(err, "storage: replace %s", path)
	}
	return nil
}
