package registry

import "errors"

// ErrDisposed is returned by operations on a disposed registry.
var ErrDisposed = errors.New("registry disposed")
