// rpc-perf drives configurable synthetic workloads against RPC-style caching
// services and reports windowed latency and throughput statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	rpcperf "github.com/twitter/rpc-perf"
	"github.com/twitter/rpc-perf/codec/memcache"
	"github.com/twitter/rpc-perf/codec/mrpc"
	"github.com/twitter/rpc-perf/codec/redis"
	"github.com/twitter/rpc-perf/log"
)

var (
	configPath = flag.String("config", "", "path to the TOML benchmark configuration")
	seed       = flag.Int64("seed", 0, "workload RNG seed, 0 derives one from the clock")
	version    = flag.Bool("version", false, "print version and exit")
)

func codecFor(protocol string) (rpcperf.Codec, error) {
	switch protocol {
	case "memcache":
		return memcache.New(), nil
	case "redis":
		return redis.New(), nil
	case "mrpc":
		return mrpc.New(), nil
	}
	return nil, fmt.Errorf("unknown protocol %q", protocol)
}

func main() {
	flag.Parse()
	log.Setup()

	if *version {
		fmt.Printf("%s %s\n", rpcperf.Name, rpcperf.Version)
		return
	}
	if *configPath == "" {
		log.Fatal("a --config file is required")
	}

	cfg, err := rpcperf.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	codec, err := codecFor(cfg.General.Protocol)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runSeed := *seed
	if runSeed == 0 {
		runSeed = time.Now().UnixNano()
	}

	bench, err := rpcperf.NewBenchmark(cfg, codec, runSeed)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Infof("%s %s", rpcperf.Name, rpcperf.Version)
	log.Infof("protocol: %s targets: %v", cfg.General.Protocol, cfg.Target.Endpoints)
	log.Infof("threads: %d poolsize: %d ratelimit: %d rps",
		cfg.General.Threads, cfg.Connection.Poolsize, cfg.Request.Ratelimit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bench.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
	log.Info("run complete")
}
