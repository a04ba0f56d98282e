// Package redis implements a RESP codec for redis-style caches.
package redis

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	rpcperf "github.com/twitter/rpc-perf"
)

var crlf = []byte("\r\n")

var errMalformed = errors.New("redis: malformed response")

// Codec encodes requests as RESP arrays of bulk strings and decodes the RESP
// replies. It is stateless and shared by all connections.
type Codec struct{}

// New returns the RESP codec.
func New() *Codec { return &Codec{} }

// Supports reports the verb/batch combinations RESP can carry in one
// request: reads map to GET or MGET, deletes to DEL with any number of keys,
// writes to SET with exactly one.
func (c *Codec) Supports(verb rpcperf.Verb, batchSize int) bool {
	switch verb {
	case rpcperf.VerbGet, rpcperf.VerbDelete:
		return batchSize >= 1
	case rpcperf.VerbSet:
		return batchSize == 1
	}
	return false
}

// Encode appends the wire form of req to dst.
func (c *Codec) Encode(dst []byte, req *rpcperf.Request) ([]byte, error) {
	switch req.Verb {
	case rpcperf.VerbGet:
		if len(req.Keys) == 1 {
			return encodeCommand(dst, "GET", req.Keys), nil
		}
		return encodeCommand(dst, "MGET", req.Keys), nil
	case rpcperf.VerbSet:
		args := [][]byte{req.Keys[0], req.Value}
		if req.TTL > 0 {
			args = append(args, []byte("EX"), strconv.AppendUint(nil, uint64(req.TTL), 10))
		}
		return encodeCommand(dst, "SET", args), nil
	case rpcperf.VerbDelete:
		return encodeCommand(dst, "DEL", req.Keys), nil
	}
	return dst, fmt.Errorf("redis: unsupported verb %q", req.Verb)
}

func encodeCommand(dst []byte, command string, args [][]byte) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(1+len(args)), 10)
	dst = append(dst, crlf...)
	dst = appendBulk(dst, []byte(command))
	for _, arg := range args {
		dst = appendBulk(dst, arg)
	}
	return dst
}

func appendBulk(dst, arg []byte) []byte {
	dst = append(dst, '$')
	dst = strconv.AppendInt(dst, int64(len(arg)), 10)
	dst = append(dst, crlf...)
	dst = append(dst, arg...)
	return append(dst, crlf...)
}

// Decode parses one complete RESP reply from buf. Null bulk strings and
// all-null arrays are misses; error replies are error outcomes; anything
// that breaks RESP framing is unrecoverable.
func (c *Codec) Decode(buf []byte) (int, rpcperf.Outcome, error) {
	if len(buf) == 0 {
		return 0, 0, rpcperf.ErrIncomplete
	}
	switch buf[0] {
	case '+':
		_, pos, ok := nextLine(buf, 1)
		if !ok {
			return 0, 0, rpcperf.ErrIncomplete
		}
		return pos, rpcperf.OutcomeOK, nil
	case '-':
		_, pos, ok := nextLine(buf, 1)
		if !ok {
			return 0, 0, rpcperf.ErrIncomplete
		}
		return pos, rpcperf.OutcomeError, nil
	case ':':
		line, pos, ok := nextLine(buf, 1)
		if !ok {
			return 0, 0, rpcperf.ErrIncomplete
		}
		if _, err := strconv.ParseInt(string(line), 10, 64); err != nil {
			return 0, 0, errMalformed
		}
		return pos, rpcperf.OutcomeOK, nil
	case '$':
		pos, null, err := parseBulk(buf, 0)
		if err != nil {
			return 0, 0, err
		}
		if null {
			return pos, rpcperf.OutcomeMiss, nil
		}
		return pos, rpcperf.OutcomeHit, nil
	case '*':
		return c.decodeArray(buf)
	}
	return 0, 0, errMalformed
}

// decodeArray handles MGET-style replies: a miss only when every element is
// a null bulk string.
func (c *Codec) decodeArray(buf []byte) (int, rpcperf.Outcome, error) {
	line, pos, ok := nextLine(buf, 1)
	if !ok {
		return 0, 0, rpcperf.ErrIncomplete
	}
	n, err := strconv.ParseInt(string(line), 10, 32)
	if err != nil {
		return 0, 0, errMalformed
	}
	if n < 0 {
		return pos, rpcperf.OutcomeMiss, nil
	}

	anyHit := false
	for i := int64(0); i < n; i++ {
		if pos >= len(buf) {
			return 0, 0, rpcperf.ErrIncomplete
		}
		switch buf[pos] {
		case '$':
			next, null, err := parseBulk(buf, pos)
			if err != nil {
				return 0, 0, err
			}
			if !null {
				anyHit = true
			}
			pos = next
		case ':':
			_, next, ok := nextLine(buf, pos+1)
			if !ok {
				return 0, 0, rpcperf.ErrIncomplete
			}
			anyHit = true
			pos = next
		default:
			return 0, 0, errMalformed
		}
	}
	if anyHit {
		return pos, rpcperf.OutcomeHit, nil
	}
	return pos, rpcperf.OutcomeMiss, nil
}

// parseBulk parses a bulk string whose '$' is at start, returning the offset
// past it and whether it was the null bulk string.
func parseBulk(buf []byte, start int) (pos int, null bool, err error) {
	line, pos, ok := nextLine(buf, start+1)
	if !ok {
		return 0, false, rpcperf.ErrIncomplete
	}
	n, perr := strconv.ParseInt(string(line), 10, 32)
	if perr != nil {
		return 0, false, errMalformed
	}
	if n < 0 {
		return pos, true, nil
	}
	end := pos + int(n) + len(crlf)
	if end > len(buf) {
		return 0, false, rpcperf.ErrIncomplete
	}
	if !bytes.Equal(buf[pos+int(n):end], crlf) {
		return 0, false, errMalformed
	}
	return end, false, nil
}

func nextLine(buf []byte, start int) (line []byte, pos int, ok bool) {
	i := bytes.Index(buf[start:], crlf)
	if i < 0 {
		return nil, 0, false
	}
	return buf[start : start+i], start + i + len(crlf), true
}
