package index

import "fmt"

// Location is the byte range of a line inside the source file.
type Location struct {
	Offset uint64
	Length uint64
}

func (l Location) String() string {
	return fmt.Sprintf("[%d+%d]", l.Offset, l.Length)
}

// Record pairs an index key with the location of the line it came from.
// Records are values; nothing mutates one after NewRecord.
type Record struct {
	Value    string
	Location Location
}

func NewRecord(value string, offset, length uint64) Record {
	return Record{Value: value, Location: Location{Offset: offset, Length: length}}
}

// Less orders records by the byte-wise comparison of their values.
func (r Record) Less(o Record) bool { return r.Value < o.Value }
