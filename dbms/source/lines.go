package source

import (
	"bufio"
	"bytes"
	"io"

	"github.com/btree-query-bench/lineindex/dbms/errs"
)

// DefaultDelimiter separates fields when none is configured.
const DefaultDelimiter = ','

// Key returns the first field of line, with any trailing "\n" or "\r\n"
// removed first.
func Key(line []byte, delim byte) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = bytes.TrimSuffix(line[:n-1], []byte{'\r'})
	}
	if i := bytes.IndexByte(line, delim); i >= 0 {
		line = line[:i]
	}
	return string(line)
}

// eachLine calls fn with every line of r, terminator included, and the
// line's starting byte offset. A final line without terminator is passed
// as is. fn returning false stops the walk.
func eachLine(r io.Reader, fn func(line []byte, offset uint64) (bool, error)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var offset uint64
	for {
		line, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return errs.IO(err, "source: read at offset %d", offset)
		}
		if len(line) > 0 {
			more, ferr := fn(line, offset)
			if ferr != nil {
				return ferr
			}
			if !more {
				return nil
			}
			offset += uint64(len(line))
		}
		if err == io.EOF {
			return nil
		}
	}
}
