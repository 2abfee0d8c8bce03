package staterepository

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// ErrTransactionDone is returned for any use of a transaction after it was
// committed or rolled back.
var ErrTransactionDone = errors.New("transaction already finished")

// PebbleStateRepository stores machine snapshots in PebbleDB. The repository
// returned by Open is safe for concurrent use; a transaction returned by
// BeginTransaction belongs to one goroutine.
type PebbleStateRepository struct {
	db    *pebble.DB
	batch *pebble.Batch // set on transactions only
	tx    bool
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*PebbleStateRepository, error) {
	return open(dbPath, &pebble.Options{})
}

// OpenInMemory returns a repository that lives only as long as the process.
func OpenInMemory() (*PebbleStateRepository, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dbPath string, opts *pebble.Options) (*PebbleStateRepository, error) {
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot store %q", dbPath)
	}
	return &PebbleStateRepository{
		db: db,
	}, nil
}

// Get retrieves a value from the database
func (r *PebbleStateRepository) Get(key []byte) ([]byte, io.Closer, error) {
	// If there's an active batch, use it exclusively so reads see pending
	// writes and deletions.
	if r.batch != nil {
		return r.batch.Get(key)
	}
	return r.db.Get(key)
}

// getCopy returns a copy of the value at key, or found=false.
func (r *PebbleStateRepository) getCopy(key []byte) (value []byte, found bool, err error) {
	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	// Make a copy since v is only valid until closer.Close()
	value = make([]byte, len(v))
	copy(value, v)
	return value, true, nil
}

// NewIter creates a new iterator with the given options
func (r *PebbleStateRepository) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	if r.batch != nil {
		// Merge pending changes with DB state
		return r.batch.NewIter(opts)
	}
	return r.db.NewIter(opts)
}

// write applies fn to the transaction's batch, or to a one-off batch that is
// committed immediately.
func (r *PebbleStateRepository) write(fn func(b *pebble.Batch) error) error {
	if r.tx {
		if r.batch == nil {
			return ErrTransactionDone
		}
		return fn(r.batch)
	}
	tempBatch := r.db.NewBatch()
	defer tempBatch.Close()
	if err := fn(tempBatch); err != nil {
		return err
	}
	return tempBatch.Commit(pebble.Sync)
}

// BeginTransaction returns a view of the repository whose writes stay in an
// indexed batch until CommitTransaction. Reads through the view see its own
// pending writes. The receiver is not changed, so other goroutines keep
// reading and writing the committed state.
func (r *PebbleStateRepository) BeginTransaction() (*PebbleStateRepository, error) {
	if r.tx {
		return nil, errors.New("transaction already in progress")
	}
	return &PebbleStateRepository{
		db:    r.db,
		batch: r.db.NewIndexedBatch(),
		tx:    true,
	}, nil
}

// CommitTransaction applies every write of the transaction atomically.
func (r *PebbleStateRepository) CommitTransaction() error {
	if !r.tx {
		return errors.New("no transaction in progress")
	}
	if r.batch == nil {
		return ErrTransactionDone
	}
	err := r.batch.Commit(pebble.Sync)
	r.batch.Close()
	r.batch = nil
	return err
}

// RollbackTransaction drops every write of the transaction.
func (r *PebbleStateRepository) RollbackTransaction() error {
	if !r.tx {
		return errors.New("no transaction in progress")
	}
	if r.batch == nil {
		return ErrTransactionDone
	}
	r.batch.Close()
	r.batch = nil
	return nil
}

// Close closes the database. On a transaction it only rolls back pending
// writes.
func (r *PebbleStateRepository) Close() error {
	if r.tx {
		if r.batch != nil {
			return r.RollbackTransaction()
		}
		return nil
	}
	return r.db.Close()
}
