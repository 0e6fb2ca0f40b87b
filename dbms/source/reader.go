package source

import (
	"io"
	"math"
	"unicode/utf8"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"github.com/btree-query-bench/lineindex/dbms/index"
)

// ReadRange returns the text stored at loc, terminator included.
func ReadRange(r io.ReadSeeker, loc index.Location) (string, error) {
	if _, err := r.Seek(int64(loc.Offset), io.SeekStart); err != nil {
		return "", errs.IO(err, "source: seek to %d", loc.Offset)
	}
	// Reads at most loc.Length bytes; a range past EOF is a short read.
	buf, err := io.ReadAll(io.LimitReader(r, int64(min(loc.Length, math.MaxInt64))))
	if err != nil {
		return "", errs.IO(err, "source: read %s", loc)
	}
	if uint64(len(buf)) != loc.Length {
		return "", errs.IOf("source: short read at %s: got %d bytes", loc, len(buf))
	}
	if !utf8.Valid(buf) {
		return "", errs.Decodef("source: bytes at %s are not valid UTF-8", loc)
	}
	return string(buf), nil
}
