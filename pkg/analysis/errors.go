package analysis

import (
	"errors"
	"fmt"
)

// ErrRunActive is returned when a controller run is requested while another
// run of the same controller is still active.
var ErrRunActive = errors.New("analysis run already active")

// ErrSequentialLock is returned when a chunk is submitted for analysis
// before its predecessor has a completed analysis. The check happens before
// any external call is made.
var ErrSequentialLock = errors.New("previous chunk has no completed analysis")

// ChunkFailedError reports the chunk at which a sequential run terminated.
type ChunkFailedError struct {
	Index int
	Title string
	Err   error
}

func (e *ChunkFailedError) Error() string {
	return fmt.Sprintf("analysis failed at chunk %d (%s): %v", e.Index, e.Title, e.Err)
}

func (e *ChunkFailedError) Unwrap() error {
	return e.Err
}
