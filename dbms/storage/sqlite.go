package storage

import (
	"database/sql"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE nodes (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE meta (
	id   INTEGER PRIMARY KEY CHECK (id = 0),
	data BLOB NOT NULL
);`

// SQLiteStore keeps every unit as one row of a single SQLite file. Each
// statement autocommits, so one unit write is one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// CreateSQLite creates the database file at path, which must not exist.
func CreateSQLite(path string, opts *Options) (*SQLiteStore, error) {
	if err := mustNotExist(path); err != nil {
		return nil, err
	}
	db, err := openSQLite(path, opts)
	if err != nil {
		return nil, errs.StorageInit(err, "storage: sqlite create %s", path)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errs.StorageInit(err, "storage: sqlite schema %s", path)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens an existing database file created by CreateSQLite.
func OpenSQLite(path string, opts *Options) (*SQLiteStore, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	db, err := openSQLite(path, opts)
	if err != nil {
		return nil, errs.Corrupt(err, "storage: sqlite open %s", path)
	}
	var n int
	err = db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('nodes', 'meta')`).Scan(&n)
	if err != nil {
		db.Close()
		return nil, errs.Corrupt(err, "storage: sqlite inspect %s", path)
	}
	if n != 2 {
		db.Close()
		return nil, errs.Corruptf("storage: %s is not an index database", path)
	}
	return &SQLiteStore{db: db}, nil
}

func openSQLite(path string, opts *Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	sync := "NORMAL"
	if opts.sync() {
		sync = "FULL"
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = ` + sync + `;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *SQLiteStore) Kind() Kind { return KindSQLite }

func (s *SQLiteStore) Allocate() (NodeID, error) {
	return NodeID(uuid.NewString()), nil
}

func (s *SQLiteStore) ReadNode(id NodeID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM nodes WHERE id = ?", string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Corrupt(err, "storage: node %s missing", id)
	}
	if err != nil {
		return nil, errs.IO(err, "storage: sqlite read node %s", id)
	}
	return data, nil
}

func (s *SQLiteStore) WriteNode(id NodeID, unit []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO nodes (id, data) VALUES (?, ?)", string(id), unit)
	if err != nil {
		return errs.IO(err, "storage: sqlite write node %s", id)
	}
	return nil
}

func (s *SQLiteStore) ReadMeta() ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM meta WHERE id = 0").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Corrupt(err, "storage: metadata missing")
	}
	if err != nil {
		return nil, errs.IO(err, "storage: sqlite read metadata")
	}
	return data, nil
}

func (s *SQLiteStore) WriteMeta(unit []byte) error {
	if _, err := s.db.Exec("INSERT OR REPLACE INTO meta (id, data) VALUES (0, ?)", unit); err != nil {
		return errs.IO(err, "storage: sqlite write metadata")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.IO(err, "storage: sqlite close")
	}
	return nil
}
