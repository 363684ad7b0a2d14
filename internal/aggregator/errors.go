package aggregator

import "errors"

// ErrDisposed is returned when registering a disposed aggregator.
var ErrDisposed = errors.New("aggregator disposed")
