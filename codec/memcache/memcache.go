// Package memcache implements the memcache text protocol codec.
package memcache

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	rpcperf "github.com/twitter/rpc-perf"
)

var crlf = []byte("\r\n")

var errMalformed = errors.New("memcache: malformed response")

// Codec encodes requests as memcache text commands and decodes the text
// responses. It is stateless and shared by all connections.
type Codec struct{}

// New returns the memcache codec.
func New() *Codec { return &Codec{} }

// Supports reports the verb/batch combinations the text protocol can carry
// in a single request: get takes any number of keys, set and delete exactly
// one.
func (c *Codec) Supports(verb rpcperf.Verb, batchSize int) bool {
	switch verb {
	case rpcperf.VerbGet:
		return batchSize >= 1
	case rpcperf.VerbSet, rpcperf.VerbDelete:
		return batchSize == 1
	}
	return false
}

// Encode appends the wire form of req to dst.
func (c *Codec) Encode(dst []byte, req *rpcperf.Request) ([]byte, error) {
	switch req.Verb {
	case rpcperf.VerbGet:
		dst = append(dst, "get"...)
		for _, key := range req.Keys {
			dst = append(dst, ' ')
			dst = append(dst, key...)
		}
		return append(dst, crlf...), nil
	case rpcperf.VerbSet:
		dst = append(dst, "set "...)
		dst = append(dst, req.Keys[0]...)
		dst = append(dst, " 0 "...) // flags
		dst = strconv.AppendUint(dst, uint64(req.TTL), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(req.Value)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, req.Value...)
		return append(dst, crlf...), nil
	case rpcperf.VerbDelete:
		dst = append(dst, "delete "...)
		dst = append(dst, req.Keys[0]...)
		return append(dst, crlf...), nil
	}
	return dst, fmt.Errorf("memcache: unsupported verb %q", req.Verb)
}

// Decode parses one complete response from buf. Storage and delete replies
// are single lines; retrieval replies are zero or more VALUE blocks
// terminated by END, where a bare END is a miss.
func (c *Codec) Decode(buf []byte) (int, rpcperf.Outcome, error) {
	line, pos, ok := nextLine(buf, 0)
	if !ok {
		return 0, 0, rpcperf.ErrIncomplete
	}

	word := firstToken(line)
	switch string(word) {
	case "STORED", "OK", "DELETED", "TOUCHED":
		return pos, rpcperf.OutcomeOK, nil
	case "END":
		return pos, rpcperf.OutcomeMiss, nil
	case "NOT_FOUND", "NOT_STORED", "EXISTS":
		return pos, rpcperf.OutcomeMiss, nil
	case "ERROR", "CLIENT_ERROR", "SERVER_ERROR":
		return pos, rpcperf.OutcomeError, nil
	case "VALUE":
		return c.decodeValues(buf, line, pos)
	}
	// incr/decr reply with a bare number
	if _, err := strconv.ParseUint(string(word), 10, 64); err == nil {
		return pos, rpcperf.OutcomeOK, nil
	}
	return 0, 0, errMalformed
}

// decodeValues walks VALUE blocks until the END line. line/pos describe the
// first VALUE line already split off buf.
func (c *Codec) decodeValues(buf, line []byte, pos int) (int, rpcperf.Outcome, error) {
	for {
		dataLen, err := valueDataLength(line)
		if err != nil {
			return 0, 0, err
		}
		// data block plus its trailing CRLF
		end := pos + dataLen + len(crlf)
		if end > len(buf) {
			return 0, 0, rpcperf.ErrIncomplete
		}
		if !bytes.Equal(buf[pos+dataLen:end], crlf) {
			return 0, 0, errMalformed
		}
		pos = end

		var ok bool
		line, pos, ok = nextLine(buf, pos)
		if !ok {
			return 0, 0, rpcperf.ErrIncomplete
		}
		switch string(firstToken(line)) {
		case "END":
			return pos, rpcperf.OutcomeHit, nil
		case "VALUE":
			continue
		default:
			return 0, 0, errMalformed
		}
	}
}

// valueDataLength extracts the byte count token from a
// "VALUE <key> <flags> <bytes> [<cas>]" line.
func valueDataLength(line []byte) (int, error) {
	fields := bytes.Fields(line)
	if len(fields) < 4 || len(fields) > 5 {
		return 0, errMalformed
	}
	if _, err := strconv.ParseUint(string(fields[2]), 10, 32); err != nil {
		return 0, errMalformed
	}
	if len(fields) == 5 {
		if _, err := strconv.ParseUint(string(fields[4]), 10, 64); err != nil {
			return 0, errMalformed
		}
	}
	n, err := strconv.ParseUint(string(fields[3]), 10, 31)
	if err != nil {
		return 0, errMalformed
	}
	return int(n), nil
}

// nextLine returns the line starting at start without its CRLF and the
// offset just past the CRLF.
func nextLine(buf []byte, start int) (line []byte, pos int, ok bool) {
	i := bytes.Index(buf[start:], crlf)
	if i < 0 {
		return nil, 0, false
	}
	return buf[start : start+i], start + i + len(crlf), true
}

func firstToken(line []byte) []byte {
	if i := bytes.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}
