package mrpc

import (
	"bytes"
	"encoding/binary"
	"testing"

	rpcperf "github.com/twitter/rpc-perf"
)

func TestEncodeFraming(t *testing.T) {
	c := New()
	out, err := c.Encode(nil, &rpcperf.Request{
		Verb:  rpcperf.VerbSet,
		Keys:  [][]byte{[]byte("foo")},
		Value: []byte("bar"),
		TTL:   30,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if out[0] != TypeSet {
		t.Errorf("first byte must be the set command type, got %d", out[0])
	}
	bodyLen := binary.BigEndian.Uint32(out[1:5])
	if int(bodyLen) != len(out)-headerLen {
		t.Errorf("header length %d, body is %d bytes", bodyLen, len(out)-headerLen)
	}
}

func TestDecodeReplyRoundTrip(t *testing.T) {
	c := New()
	cases := []struct {
		code byte
		data []byte
		want rpcperf.Outcome
	}{
		{CodeOK, nil, rpcperf.OutcomeOK},
		{CodeOK, []byte("value"), rpcperf.OutcomeHit},
		{CodeMiss, nil, rpcperf.OutcomeMiss},
		{CodeErr, nil, rpcperf.OutcomeError},
	}
	for _, tc := range cases {
		frame, err := EncodeReply(nil, tc.code, tc.data)
		if err != nil {
			t.Fatalf("encode reply failed: %v", err)
		}
		n, out, err := c.Decode(frame)
		if err != nil {
			t.Fatalf("decode failed for code %d: %v", tc.code, err)
		}
		if n != len(frame) {
			t.Errorf("consumed %d of %d bytes", n, len(frame))
		}
		if out != tc.want {
			t.Errorf("code %d decoded to outcome %d, want %d", tc.code, out, tc.want)
		}
	}
}

func TestDecodeIncomplete(t *testing.T) {
	c := New()
	frame, err := EncodeReply(nil, CodeOK, []byte("value"))
	if err != nil {
		t.Fatalf("encode reply failed: %v", err)
	}
	for cut := 0; cut < len(frame); cut++ {
		n, _, err := c.Decode(frame[:cut])
		if err != rpcperf.ErrIncomplete {
			t.Fatalf("prefix of %d bytes: got err %v, want ErrIncomplete", cut, err)
		}
		if n != 0 {
			t.Fatalf("prefix of %d bytes consumed %d", cut, n)
		}
	}
}

func TestDecodePipelinedFrames(t *testing.T) {
	c := New()
	first, err := EncodeReply(nil, CodeMiss, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := EncodeReply(first, CodeOK, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}

	n, out, err := c.Decode(buf)
	if err != nil || out != rpcperf.OutcomeMiss {
		t.Fatalf("first frame: n=%d out=%d err=%v", n, out, err)
	}
	n2, out2, err := c.Decode(buf[n:])
	if err != nil || out2 != rpcperf.OutcomeHit {
		t.Fatalf("second frame: n=%d out=%d err=%v", n2, out2, err)
	}
	if n+n2 != len(buf) {
		t.Errorf("consumed %d of %d bytes", n+n2, len(buf))
	}
}

func TestDecodeDesynchronized(t *testing.T) {
	c := New()
	frame := bytes.Repeat([]byte{0x7f}, 16)
	_, _, err := c.Decode(frame)
	if err == nil || err == rpcperf.ErrIncomplete {
		t.Fatalf("unknown type byte must be unrecoverable, got %v", err)
	}
}

func TestSupports(t *testing.T) {
	c := New()
	if !c.Supports(rpcperf.VerbGet, 8) {
		t.Error("multi-key get must be supported")
	}
	if c.Supports(rpcperf.VerbSet, 2) {
		t.Error("multi-key set must not be supported")
	}
}
