package insteon

import "errors"

// Sentinel errors. The flat errors.New style matches the teacher's
// i1device.go/network.go usage rather than a custom error type
// hierarchy.
var (
	ErrReadTimeout        = errors.New("insteon: read timeout")
	ErrWriteTimeout       = errors.New("insteon: write timeout")
	ErrAckTimeout         = errors.New("insteon: ack timeout")
	ErrNotLinked          = errors.New("insteon: device not linked")
	ErrVersion            = errors.New("insteon: unsupported engine version")
	ErrUnexpectedResponse = errors.New("insteon: unexpected response")
	ErrUnknownCommand     = errors.New("insteon: unknown command")
	ErrNoLoadDetected     = errors.New("insteon: no load detected")
	ErrNotImplemented     = errors.New("insteon: not implemented")
	ErrReceiveComplete    = errors.New("insteon: receive complete")

	// ErrLinkClosed names the link-closed failure. The ProtocolEngine
	// reports it to queued and active handlers as the plain status
	// text "link closed", not as this error value.
	ErrLinkClosed = errors.New("insteon: link closed")

	// ErrStale marks a device database that must be refetched before
	// it can be trusted for mutation.
	ErrStale = errors.New("insteon: device database is stale")

	// ErrCanceled names the canceled outcome of a handler or command
	// sequence. No handler or sequence in this package reports it:
	// neither offers an explicit cancel operation.
	ErrCanceled = errors.New("insteon: canceled")

	// ErrDuplicateCompletion is logged (not returned to callers) when
	// a handler or sequence step's on_done fires more than once.
	ErrDuplicateCompletion = errors.New("insteon: on_done invoked more than once")

	// ErrNoFreeMemory is returned when a device database has no
	// remaining unused record slot to write a new link into.
	ErrNoFreeMemory = errors.New("insteon: device database is full")
)

func newTraceError(err error) error {
	return err
}
