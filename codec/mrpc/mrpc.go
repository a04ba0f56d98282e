// Package mrpc implements a binary RPC cache codec: a one-byte command type,
// a big-endian uint32 body length, and a msgpack-encoded body. This is the
// framing spoken by thrift-cache-style RPC servers in their msgpack variant.
package mrpc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	rpcperf "github.com/twitter/rpc-perf"
)

// Command type bytes on the wire.
const (
	TypeGet byte = iota + 1
	TypeSet
	TypeDelete

	TypeReply byte = 128
)

// Reply status codes.
const (
	CodeOK byte = iota
	CodeMiss
	CodeErr
)

const headerLen = 5

var errMalformed = errors.New("mrpc: malformed response")

// request is the msgpack body of every command.
type request struct {
	Keys  [][]byte `msgpack:"k"`
	Value []byte   `msgpack:"v,omitempty"`
	TTL   uint32   `msgpack:"t,omitempty"`
}

// reply is the msgpack body of every response.
type reply struct {
	Code byte   `msgpack:"c"`
	Data []byte `msgpack:"d,omitempty"`
}

// Codec encodes requests into the framed msgpack form and decodes framed
// replies. It is stateless and shared by all connections.
type Codec struct{}

// New returns the mrpc codec.
func New() *Codec { return &Codec{} }

// Supports reports the verb/batch combinations the RPC body can carry:
// reads and deletes take any number of keys, writes exactly one.
func (c *Codec) Supports(verb rpcperf.Verb, batchSize int) bool {
	switch verb {
	case rpcperf.VerbGet, rpcperf.VerbDelete:
		return batchSize >= 1
	case rpcperf.VerbSet:
		return batchSize == 1
	}
	return false
}

func typeFor(verb rpcperf.Verb) (byte, error) {
	switch verb {
	case rpcperf.VerbGet:
		return TypeGet, nil
	case rpcperf.VerbSet:
		return TypeSet, nil
	case rpcperf.VerbDelete:
		return TypeDelete, nil
	}
	return 0, fmt.Errorf("mrpc: unsupported verb %q", verb)
}

// Encode appends the wire form of req to dst.
func (c *Codec) Encode(dst []byte, req *rpcperf.Request) ([]byte, error) {
	cmdType, err := typeFor(req.Verb)
	if err != nil {
		return dst, err
	}
	body, err := msgpack.Marshal(&request{
		Keys:  req.Keys,
		Value: req.Value,
		TTL:   req.TTL,
	})
	if err != nil {
		return dst, err
	}

	var header [headerLen]byte
	header[0] = cmdType
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)))
	dst = append(dst, header[:]...)
	return append(dst, body...), nil
}

// Decode parses one framed reply from buf. An unknown type byte means the
// stream is desynchronized and the connection must be recycled.
func (c *Codec) Decode(buf []byte) (int, rpcperf.Outcome, error) {
	if len(buf) < headerLen {
		return 0, 0, rpcperf.ErrIncomplete
	}
	if buf[0] != TypeReply {
		return 0, 0, errMalformed
	}
	bodyLen := int(binary.BigEndian.Uint32(buf[1:headerLen]))
	total := headerLen + bodyLen
	if len(buf) < total {
		return 0, 0, rpcperf.ErrIncomplete
	}

	var r reply
	if err := msgpack.Unmarshal(buf[headerLen:total], &r); err != nil {
		return 0, 0, errMalformed
	}
	switch r.Code {
	case CodeOK:
		if len(r.Data) > 0 {
			return total, rpcperf.OutcomeHit, nil
		}
		return total, rpcperf.OutcomeOK, nil
	case CodeMiss:
		return total, rpcperf.OutcomeMiss, nil
	case CodeErr:
		return total, rpcperf.OutcomeError, nil
	}
	return 0, 0, errMalformed
}

// EncodeReply builds a framed reply; test servers use it to speak the
// protocol back at the client.
func EncodeReply(dst []byte, code byte, data []byte) ([]byte, error) {
	body, err := msgpack.Marshal(&reply{Code: code, Data: data})
	if err != nil {
		return dst, err
	}
	var header [headerLen]byte
	header[0] = TypeReply
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)))
	dst = append(dst, header[:]...)
	return append(dst, body...), nil
}
