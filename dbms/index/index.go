package index

// Index is the common interface for all implementations.
type Index interface {
	Insert(rec Record) error
	Search(value string) (Record, bool, error)
	Close() error
}
