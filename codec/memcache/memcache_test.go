package memcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rpcperf "github.com/twitter/rpc-perf"
)

func TestEncodeGet(t *testing.T) {
	c := New()
	out, err := c.Encode(nil, &rpcperf.Request{
		Verb: rpcperf.VerbGet,
		Keys: [][]byte{[]byte("foo"), []byte("bar")},
	})
	require.NoError(t, err)
	assert.Equal(t, "get foo bar\r\n", string(out))
}

func TestEncodeSet(t *testing.T) {
	c := New()
	out, err := c.Encode(nil, &rpcperf.Request{
		Verb:  rpcperf.VerbSet,
		Keys:  [][]byte{[]byte("foo")},
		Value: []byte("hello"),
		TTL:   30,
	})
	require.NoError(t, err)
	assert.Equal(t, "set foo 0 30 5\r\nhello\r\n", string(out))
}

func TestEncodeDelete(t *testing.T) {
	c := New()
	out, err := c.Encode(nil, &rpcperf.Request{
		Verb: rpcperf.VerbDelete,
		Keys: [][]byte{[]byte("foo")},
	})
	require.NoError(t, err)
	assert.Equal(t, "delete foo\r\n", string(out))
}

func TestDecodeSingleLineResponses(t *testing.T) {
	c := New()
	for body, want := range map[string]rpcperf.Outcome{
		"STORED\r\n":           rpcperf.OutcomeOK,
		"DELETED\r\n":          rpcperf.OutcomeOK,
		"42\r\n":               rpcperf.OutcomeOK,
		"END\r\n":              rpcperf.OutcomeMiss,
		"NOT_FOUND\r\n":        rpcperf.OutcomeMiss,
		"NOT_STORED\r\n":       rpcperf.OutcomeMiss,
		"ERROR\r\n":            rpcperf.OutcomeError,
		"SERVER_ERROR oom\r\n": rpcperf.OutcomeError,
		"CLIENT_ERROR bad\r\n": rpcperf.OutcomeError,
	} {
		n, out, err := c.Decode([]byte(body))
		require.NoErrorf(t, err, "body %q", body)
		assert.Equalf(t, len(body), n, "body %q", body)
		assert.Equalf(t, want, out, "body %q", body)
	}
}

func TestDecodeValueHit(t *testing.T) {
	c := New()
	body := "VALUE foo 0 5\r\nhello\r\nEND\r\n"
	n, out, err := c.Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, len(body), n)
	assert.Equal(t, rpcperf.OutcomeHit, out)
}

func TestDecodeMultiValueHit(t *testing.T) {
	c := New()
	body := "VALUE foo 0 3 12\r\nabc\r\nVALUE bar 0 2\r\nxy\r\nEND\r\n"
	n, out, err := c.Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, len(body), n)
	assert.Equal(t, rpcperf.OutcomeHit, out)
}

func TestDecodeIncomplete(t *testing.T) {
	c := New()
	for _, body := range []string{
		"",
		"STOR",
		"VALUE foo 0 5\r\nhel",
		"VALUE foo 0 5\r\nhello\r\n", // END not seen yet
	} {
		n, _, err := c.Decode([]byte(body))
		assert.ErrorIsf(t, err, rpcperf.ErrIncomplete, "body %q", body)
		assert.Zerof(t, n, "body %q", body)
	}
}

func TestDecodePipelinedFrames(t *testing.T) {
	c := New()
	buf := []byte("STORED\r\nEND\r\n")

	n, out, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, rpcperf.OutcomeOK, out)

	n2, out2, err := c.Decode(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, rpcperf.OutcomeMiss, out2)
	assert.Equal(t, len(buf), n+n2)
}

func TestDecodeMalformed(t *testing.T) {
	c := New()
	for _, body := range []string{
		"BOGUS\r\n",
		"VALUE foo 0 notanumber\r\n",
		"VALUE foo 0 3\r\nabcX\r",
	} {
		_, _, err := c.Decode([]byte(body))
		require.Errorf(t, err, "body %q", body)
		assert.NotErrorIsf(t, err, rpcperf.ErrIncomplete, "body %q", body)
	}
}

func TestSupports(t *testing.T) {
	c := New()
	assert.True(t, c.Supports(rpcperf.VerbGet, 1))
	assert.True(t, c.Supports(rpcperf.VerbGet, 16))
	assert.True(t, c.Supports(rpcperf.VerbSet, 1))
	assert.False(t, c.Supports(rpcperf.VerbSet, 2))
	assert.False(t, c.Supports(rpcperf.VerbDelete, 3))
	assert.False(t, c.Supports(rpcperf.Verb("incr"), 1))
}
