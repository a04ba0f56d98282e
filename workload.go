package rpcperf

import (
	"errors"
	"math/rand"
)

var errNoKeyspaces = errors.New("workload: at least one keyspace is required")

// valuePoolSize is how many random payloads are pre-generated per configured
// value length. Requests pick one at random instead of filling a fresh
// buffer per request, keeping allocation off the issue path while content
// stays random.
const valuePoolSize = 8

// Generator turns the keyspace models into a stream of logical requests.
// It is immutable after construction and shared by all workers; all draw
// state lives in the caller's RNG, so a fixed seed reproduces the same
// request sequence.
type Generator struct {
	keyspaces []*Keyspace
	ksCum     []int
	ksTotal   int

	// value payload pools keyed by length
	pools map[int][][]byte
}

// NewGenerator builds a generator over the given keyspaces. Keyspace
// selection is weighted by each keyspace's total command weight, drawn with
// the same half-open convention as every other weighted table. seed feeds
// only the payload pools; per-request draws use the caller's RNG.
func NewGenerator(keyspaces []*Keyspace, seed int64) (*Generator, error) {
	if len(keyspaces) == 0 {
		return nil, errNoKeyspaces
	}
	g := &Generator{
		keyspaces: keyspaces,
		pools:     make(map[int][][]byte),
	}
	for _, ks := range keyspaces {
		g.ksTotal += ks.CommandWeight()
		g.ksCum = append(g.ksCum, g.ksTotal)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, ks := range keyspaces {
		for _, length := range ks.valueLens {
			if _, ok := g.pools[length]; ok {
				continue
			}
			pool := make([][]byte, valuePoolSize)
			for i := range pool {
				buf := make([]byte, length)
				for j := range buf {
					buf[j] = keyAlphabet[rng.Intn(len(keyAlphabet))]
				}
				pool[i] = buf
			}
			g.pools[length] = pool
		}
	}
	return g, nil
}

// Next fills req with the next logical request: keyspace, verb, batch-size
// keys drawn independently across the key universe, and a pooled payload for
// write verbs. req's key slices are reused across calls; the payload slice
// aliases the shared pool and must be treated as read-only.
func (g *Generator) Next(rng *rand.Rand, req *Request) {
	ks := g.keyspaces[pickWeighted(rng.Intn(g.ksTotal), g.ksCum)]

	req.Verb = ks.ChooseCommand(rng)
	req.TTL = ks.TTL()

	batch := ks.BatchSize()
	if cap(req.Keys) < batch {
		req.Keys = make([][]byte, batch)
	}
	req.Keys = req.Keys[:batch]
	for i := 0; i < batch; i++ {
		req.Keys[i] = ks.ChooseKey(rng, req.Keys[i][:0])
	}

	req.Value = nil
	if !req.Verb.IsRead() && req.Verb != VerbDelete {
		length := ks.ChooseValueLength(rng)
		pool := g.pools[length]
		req.Value = pool[rng.Intn(len(pool))]
	}
}
