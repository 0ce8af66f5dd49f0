package fs

import (
	"errors"
	"iter"
)

// Dirent is a directory entry produced by a Dir. Info has the same shape as
// a direct Stat of the joined path. Parent is left empty; the parent is the
// Path of the stream that produced the entry.
type Dirent struct {
	Name   string
	Parent string
	Info   FileInfo
}

// IsDir reports whether the entry describes a directory.
func (d *Dirent) IsDir() bool {
	return d.Info.IsDir
}

// EntrySource yields the next entry of a directory. It returns nil, nil once
// there are no more entries and keeps doing so on further calls.
type EntrySource func() (*Dirent, error)

// ReadResult is the value delivered by ReadAsync.
type ReadResult struct {
	Entry *Dirent
	Err   error
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithOnClose registers fn to run once, on the first successful Close.
// fn runs before the stream is marked closed, so a Read issued from inside
// fn still succeeds.
func WithOnClose(fn func()) DirOption {
	return func(d *Dir) {
		d.onClose = fn
	}
}

// Dir is a directory stream over a known sequence of entries. It mimics a
// live directory handle: entries are handed out one at a time and every
// Read or Close after Close fails with ErrDirClosed.
//
// A Dir is not safe for concurrent use.
type Dir struct {
	path    string
	next    EntrySource
	onClose func()
	closed  bool
	iterErr error
}

// NewDir returns an open stream for path that pulls entries from next.
func NewDir(path string, next EntrySource, opts ...DirOption) *Dir {
	d := &Dir{path: path, next: next}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the directory the stream was opened on.
func (d *Dir) Path() string {
	return d.path
}

// Closed reports whether Close has succeeded.
func (d *Dir) Closed() bool {
	return d.closed
}

// Read returns the next entry, or nil, nil when the directory is exhausted.
func (d *Dir) Read() (*Dirent, error) {
	if d.closed {
		return nil, NewDirClosedError(OpRead, d.path)
	}
	return d.next()
}

// ReadAsync performs Read and returns a channel already holding its result.
func (d *Dir) ReadAsync() <-chan ReadResult {
	ch := make(chan ReadResult, 1)
	ent, err := d.Read()
	ch <- ReadResult{Entry: ent, Err: err}
	close(ch)
	return ch
}

// ReadCallback performs Read and passes its result to cb before returning.
func (d *Dir) ReadCallback(cb func(*Dirent, error)) {
	cb(d.Read())
}

// Close ends the stream and runs the close hook. Closing twice is an error.
func (d *Dir) Close() error {
	if d.closed {
		return NewDirClosedError(OpClose, d.path)
	}
	if fn := d.onClose; fn != nil {
		d.onClose = nil
		fn()
	}
	d.closed = true
	return nil
}

// CloseAsync performs Close and returns a channel already holding its error.
func (d *Dir) CloseAsync() <-chan error {
	ch := make(chan error, 1)
	ch <- d.Close()
	close(ch)
	return ch
}

// CloseCallback performs Close and passes its error to cb before returning.
func (d *Dir) CloseCallback(cb func(error)) {
	cb(d.Close())
}

// Entries returns a single-use sequence over the remaining entries. The
// stream is closed when the sequence ends, whether it ran out, the consumer
// stopped early, a read failed or the loop body panicked. Read failures are
// yielded once the stream is closed. A close failure that can no longer be
// yielded because the consumer has left is reported by Err.
func (d *Dir) Entries() iter.Seq2[*Dirent, error] {
	return func(yield func(*Dirent, error) bool) {
		done := false
		finish := func() error {
			done = true
			return d.Close()
		}
		defer func() {
			if !done {
				if err := finish(); err != nil {
					d.iterErr = err
				}
			}
		}()

		for {
			ent, err := d.Read()
			if err != nil {
				if d.closed {
					done = true
				} else if cerr := finish(); cerr != nil {
					err = errors.Join(err, cerr)
				}
				yield(nil, err)
				return
			}
			if ent == nil {
				if err := finish(); err != nil {
					yield(nil, err)
				}
				return
			}
			if !yield(ent, nil) {
				return
			}
		}
	}
}

// Err returns the close failure of an iteration the consumer left early.
func (d *Dir) Err() error {
	return d.iterErr
}
