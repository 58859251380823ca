package sentinel

import "errors"

// Storage errors. Adapters return these (optionally wrapped) and the
// credential store translates them once.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("storage closed")
)
