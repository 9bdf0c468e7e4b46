package httpconn

import "errors"

// Error kinds per §7. Each maps to either an HTTP status written back to
// the client or a silent local close.
var (
	ErrInvalidRequest   = errors.New("httpconn: invalid request")
	ErrForbidden        = errors.New("httpconn: forbidden")
	ErrNotFound         = errors.New("httpconn: not found")
	ErrInternal         = errors.New("httpconn: internal error")
	ErrConnectionClosed = errors.New("httpconn: connection closed by peer")
)
