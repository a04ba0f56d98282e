package rpcperf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator(t *testing.T, cfgs ...KeyspaceConfig) *Generator {
	t.Helper()
	var keyspaces []*Keyspace
	for _, cfg := range cfgs {
		ks, err := NewKeyspace(cfg, nil)
		require.NoError(t, err)
		keyspaces = append(keyspaces, ks)
	}
	gen, err := NewGenerator(keyspaces, 1)
	require.NoError(t, err)
	return gen
}

func TestGeneratorBatchSize(t *testing.T) {
	cfg := testKeyspaceConfig()
	cfg.BatchSize = 3
	gen := testGenerator(t, cfg)

	rng := rand.New(rand.NewSource(5))
	var req Request
	for i := 0; i < 100; i++ {
		gen.Next(rng, &req)
		require.Len(t, req.Keys, 3)
		for _, key := range req.Keys {
			require.Len(t, key, cfg.Length)
		}
	}
}

func TestGeneratorValuePayloads(t *testing.T) {
	cfg := testKeyspaceConfig()
	cfg.Commands = []CommandConfig{{Verb: "set", Weight: 1}}
	cfg.Values = []ValueConfig{{Length: 64, Weight: 1}}
	cfg.TTL = 30
	gen := testGenerator(t, cfg)

	rng := rand.New(rand.NewSource(5))
	var req Request
	for i := 0; i < 50; i++ {
		gen.Next(rng, &req)
		require.Equal(t, VerbSet, req.Verb)
		require.Len(t, req.Value, 64)
		require.Equal(t, uint32(30), req.TTL)
	}
}

func TestGeneratorReadsCarryNoValue(t *testing.T) {
	cfg := testKeyspaceConfig()
	cfg.Commands = []CommandConfig{
		{Verb: "get", Weight: 1},
		{Verb: "delete", Weight: 1},
	}
	gen := testGenerator(t, cfg)

	rng := rand.New(rand.NewSource(5))
	var req Request
	for i := 0; i < 100; i++ {
		gen.Next(rng, &req)
		assert.Nil(t, req.Value)
	}
}

func TestGeneratorDeterministicUnderSeed(t *testing.T) {
	cfg := testKeyspaceConfig()
	cfg.Commands = []CommandConfig{
		{Verb: "get", Weight: 3},
		{Verb: "set", Weight: 1},
	}

	sequence := func() []Request {
		gen := testGenerator(t, cfg)
		rng := rand.New(rand.NewSource(123))
		var out []Request
		for i := 0; i < 200; i++ {
			var req Request
			gen.Next(rng, &req)
			// deep copy, Next reuses key slices
			cp := Request{Verb: req.Verb, TTL: req.TTL, Value: append([]byte(nil), req.Value...)}
			for _, k := range req.Keys {
				cp.Keys = append(cp.Keys, append([]byte(nil), k...))
			}
			out = append(out, cp)
		}
		return out
	}

	assert.Equal(t, sequence(), sequence())
}

func TestGeneratorWeightsKeyspaces(t *testing.T) {
	heavy := testKeyspaceConfig()
	heavy.Commands = []CommandConfig{{Verb: "get", Weight: 9}}
	heavy.Length = 4
	light := testKeyspaceConfig()
	light.Commands = []CommandConfig{{Verb: "get", Weight: 1}}
	light.Length = 8

	gen := testGenerator(t, heavy, light)
	rng := rand.New(rand.NewSource(11))

	counts := map[int]int{}
	var req Request
	const draws = 20000
	for i := 0; i < draws; i++ {
		gen.Next(rng, &req)
		counts[len(req.Keys[0])]++
	}
	assert.InDelta(t, 0.9, float64(counts[4])/draws, 0.02)
	assert.InDelta(t, 0.1, float64(counts[8])/draws, 0.02)
}

func TestGeneratorRequiresKeyspaces(t *testing.T) {
	_, err := NewGenerator(nil, 1)
	assert.Error(t, err)
}
