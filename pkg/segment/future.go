package segment

// WriteFuture completes once the physical write of a record has finished or failed.
// Completion does not imply durability; that requires Sync.
type WriteFuture struct {
	offset int64
	done   chan struct{}
	err    error
}

func newWriteFuture(offset int64) *WriteFuture {
	return &WriteFuture{
		offset: offset,
		done:   make(chan struct{}),
	}
}

// Offset is the byte offset reserved for the record.
func (f *WriteFuture) Offset() int64 {
	return f.offset
}

// Done is closed when the write completes.
func (f *WriteFuture) Done() <-chan struct{} {
	return f.done
}

// Error blocks until the write completes and returns its result.
func (f *WriteFuture) Error() error {
	<-f.done
	return f.err
}

func (f *WriteFuture) respond(err error) {
	f.err = err
	close(f.done)
}
