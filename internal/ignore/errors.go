package ignore

import "errors"

// ErrDisposed is returned for queries issued to a disposed queue.
var ErrDisposed = errors.New("ignore queue disposed")
