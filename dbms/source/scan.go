package source

import (
	"io"

	"github.com/btree-query-bench/lineindex/dbms/index"
)

// Scan looks value up by reading r from the start, extracting keys the
// same way Index does. It returns the first matching line's record.
func Scan(r io.Reader, value string, delim byte) (index.Record, bool, error) {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	var (
		found index.Record
		ok    bool
	)
	err := eachLine(r, func(line []byte, offset uint64) (bool, error) {
		if value != "" && Key(line, delim) == value {
			found, ok = index.NewRecord(value, offset, uint64(len(line))), true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return index.Record{}, false, err
	}
	return found, ok, nil
}
