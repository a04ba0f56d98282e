package rpcperf

import "errors"

// Verb is a single protocol operation class. Each codec maps verbs onto its
// own wire commands; a codec rejects verbs it cannot express at config time
// via Supports.
type Verb string

const (
	VerbGet    Verb = "get"
	VerbSet    Verb = "set"
	VerbDelete Verb = "delete"
)

// IsRead reports whether the verb expects a value back from the target.
func (v Verb) IsRead() bool {
	return v == VerbGet
}

// Outcome classifies a single decoded response.
type Outcome uint8

const (
	// OutcomeOK is a successful response with no hit/miss meaning (stored,
	// deleted, ...).
	OutcomeOK Outcome = iota
	// OutcomeHit is a successful read that returned data.
	OutcomeHit
	// OutcomeMiss is a successful read for keys the target does not hold.
	OutcomeMiss
	// OutcomeError is a response the target itself flagged as an error.
	OutcomeError
)

// Request is one logical operation produced by the workload generator and
// consumed by exactly one connection. Keys holds batch-size keys; Value is
// nil for read verbs.
type Request struct {
	Verb  Verb
	Keys  [][]byte
	Value []byte
	TTL   uint32
}

// ErrIncomplete is returned by Decode when the buffer does not yet contain a
// full response frame. The connection keeps reading; it is not an error
// outcome.
var ErrIncomplete = errors.New("incomplete frame")

// Codec translates between logical requests and a target's wire format.
// Implementations are stateless and safe for use from multiple connections.
//
// Encode appends the wire form of req to dst and returns the extended slice.
// Decode inspects buf for one complete response frame, returning the number
// of bytes consumed and the outcome. A partial frame returns ErrIncomplete
// with n == 0. Any other error means the frame boundary is unrecoverable and
// the connection must be closed rather than risk misattributing responses.
type Codec interface {
	Encode(dst []byte, req *Request) ([]byte, error)
	Decode(buf []byte) (n int, out Outcome, err error)
	// Supports reports whether the codec can express verb with the given
	// number of keys in one request.
	Supports(verb Verb, batchSize int) bool
}
