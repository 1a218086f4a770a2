package queue

import "fmt"

// PersistenceError reports a failed write against the durable queue
// store. It is surfaced to callers immediately: the queue never keeps an
// item in memory that it could not persist.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("queue persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
