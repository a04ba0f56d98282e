package rpcperf

import (
	"fmt"
	"math/rand"
)

// keyAlphabet is the fixed 52-symbol alphabet keys are drawn from. A key of
// length N therefore enumerates a universe of exactly 52^N distinct keys.
const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxIndexableKeyLength is the largest key length whose full universe still
// fits an int64 index (52^11 < 2^63). Longer keys are drawn symbol by
// symbol, which yields the same uniform distribution without a wide integer.
const maxIndexableKeyLength = 11

// Keyspace is the pure derivation of one keyspace config: cumulative weight
// tables for verbs and value lengths plus the key universe bijection. It is
// immutable after construction and safe to share across workers.
type Keyspace struct {
	length    int
	ttl       uint32
	batchSize int

	verbs     []Verb
	verbCum   []int
	verbTotal int

	valueLens  []int
	valueCum   []int
	valueTotal int
}

// NewKeyspace validates cfg and builds the weight tables. All weight-sum and
// batch-size problems are configuration errors surfaced here, before any
// connection is opened.
func NewKeyspace(cfg KeyspaceConfig, codec Codec) (*Keyspace, error) {
	if cfg.Length < 1 {
		return nil, fmt.Errorf("keyspace: key length must be >= 1, got %d", cfg.Length)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("keyspace: batch_size must be >= 1, got %d", cfg.BatchSize)
	}
	if len(cfg.Commands) == 0 {
		return nil, fmt.Errorf("keyspace: at least one command is required")
	}
	if len(cfg.Values) == 0 {
		return nil, fmt.Errorf("keyspace: at least one value length is required")
	}

	ks := &Keyspace{
		length:    cfg.Length,
		ttl:       cfg.TTL,
		batchSize: cfg.BatchSize,
	}

	for _, c := range cfg.Commands {
		if c.Weight <= 0 {
			return nil, fmt.Errorf("keyspace: command %q weight must be positive, got %d", c.Verb, c.Weight)
		}
		verb := Verb(c.Verb)
		if codec != nil && !codec.Supports(verb, cfg.BatchSize) {
			return nil, fmt.Errorf("keyspace: codec cannot express verb %q with batch_size %d", c.Verb, cfg.BatchSize)
		}
		ks.verbs = append(ks.verbs, verb)
		ks.verbTotal += c.Weight
		ks.verbCum = append(ks.verbCum, ks.verbTotal)
	}
	if ks.verbTotal <= 0 {
		return nil, fmt.Errorf("keyspace: command weights sum to zero")
	}

	for _, v := range cfg.Values {
		if v.Weight <= 0 {
			return nil, fmt.Errorf("keyspace: value length %d weight must be positive, got %d", v.Length, v.Weight)
		}
		if v.Length < 0 {
			return nil, fmt.Errorf("keyspace: value length must be >= 0, got %d", v.Length)
		}
		ks.valueLens = append(ks.valueLens, v.Length)
		ks.valueTotal += v.Weight
		ks.valueCum = append(ks.valueCum, ks.valueTotal)
	}
	if ks.valueTotal <= 0 {
		return nil, fmt.Errorf("keyspace: value weights sum to zero")
	}

	return ks, nil
}

// KeyLength returns the configured key length in symbols.
func (ks *Keyspace) KeyLength() int { return ks.length }

// TTL returns the configured time-to-live in seconds, 0 meaning no expiry.
func (ks *Keyspace) TTL() uint32 { return ks.ttl }

// BatchSize returns the number of keys every request in this keyspace
// carries.
func (ks *Keyspace) BatchSize() int { return ks.batchSize }

// CommandWeight returns the total command weight, used to apportion the
// request mix across keyspaces.
func (ks *Keyspace) CommandWeight() int { return ks.verbTotal }

// UniverseSize returns 52^length. exact is false when the universe does not
// fit an int64; in that case keys are still drawable but not addressable by
// index.
func (ks *Keyspace) UniverseSize() (size int64, exact bool) {
	if ks.length > maxIndexableKeyLength {
		return 0, false
	}
	size = 1
	for i := 0; i < ks.length; i++ {
		size *= int64(len(keyAlphabet))
	}
	return size, true
}

// KeyForIndex maps an index in [0, 52^length) to its canonical key by
// base-52 digit expansion, most significant symbol first. The mapping is a
// bijection over the universe; it panics on out-of-range indexes since those
// indicate a programming error, not bad input.
func (ks *Keyspace) KeyForIndex(index int64) []byte {
	size, exact := ks.UniverseSize()
	if !exact || index < 0 || index >= size {
		panic(fmt.Sprintf("keyspace: index %d outside universe", index))
	}
	key := make([]byte, ks.length)
	for i := ks.length - 1; i >= 0; i-- {
		key[i] = keyAlphabet[index%int64(len(keyAlphabet))]
		index /= int64(len(keyAlphabet))
	}
	return key
}

// IndexForKey is the inverse of KeyForIndex.
func (ks *Keyspace) IndexForKey(key []byte) (int64, error) {
	if len(key) != ks.length {
		return 0, fmt.Errorf("keyspace: key length %d, want %d", len(key), ks.length)
	}
	var index int64
	for _, b := range key {
		d := digitForSymbol(b)
		if d < 0 {
			return 0, fmt.Errorf("keyspace: symbol %q outside alphabet", b)
		}
		index = index*int64(len(keyAlphabet)) + int64(d)
	}
	return index, nil
}

func digitForSymbol(b byte) int {
	switch {
	case b >= 'a' && b <= 'z':
		return int(b - 'a')
	case b >= 'A' && b <= 'Z':
		return 26 + int(b-'A')
	}
	return -1
}

// ChooseCommand draws a verb with probability proportional to its weight.
// The draw r is uniform over the half-open interval [0, total); entry i is
// selected when r falls in [cum[i-1], cum[i]).
func (ks *Keyspace) ChooseCommand(rng *rand.Rand) Verb {
	return ks.verbs[pickWeighted(rng.Intn(ks.verbTotal), ks.verbCum)]
}

// ChooseValueLength draws a value length with probability proportional to
// its weight.
func (ks *Keyspace) ChooseValueLength(rng *rand.Rand) int {
	return ks.valueLens[pickWeighted(rng.Intn(ks.valueTotal), ks.valueCum)]
}

// ChooseKey draws one key uniformly from the universe and appends it to dst.
func (ks *Keyspace) ChooseKey(rng *rand.Rand, dst []byte) []byte {
	if size, exact := ks.UniverseSize(); exact {
		return append(dst, ks.KeyForIndex(rng.Int63n(size))...)
	}
	for i := 0; i < ks.length; i++ {
		dst = append(dst, keyAlphabet[rng.Intn(len(keyAlphabet))])
	}
	return dst
}

// pickWeighted returns the first index whose cumulative weight exceeds the
// draw. cum must be a strictly positive prefix-sum table and r < cum[last].
func pickWeighted(r int, cum []int) int {
	for i, c := range cum {
		if r < c {
			return i
		}
	}
	return len(cum) - 1
}
