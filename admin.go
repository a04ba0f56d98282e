package rpcperf

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/twitter/rpc-perf/log"
)

// Admin serves the control surface: read endpoints for the latest window
// stats and a write endpoint that retargets the shared rate limiter. It only
// reads what the aggregator has already published and writes only through
// Ratelimiter.SetRate, so it can never block a worker.
type Admin struct {
	agg     *Aggregator
	limiter *Ratelimiter
	server  *fasthttp.Server
	metrics fasthttp.RequestHandler
}

// NewAdmin builds the admin surface. gatherer feeds the Prometheus /metrics
// endpoint and may be nil to disable it.
func NewAdmin(agg *Aggregator, limiter *Ratelimiter, gatherer prometheus.Gatherer) *Admin {
	a := &Admin{agg: agg, limiter: limiter}
	if gatherer != nil {
		a.metrics = fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	a.server = &fasthttp.Server{Handler: a.handle}
	return a
}

// Run serves on addr until ctx is cancelled.
func (a *Admin) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return a.RunListener(ctx, ln)
}

// RunListener serves on an existing listener until ctx is cancelled.
func (a *Admin) RunListener(ctx context.Context, ln net.Listener) error {
	log.Infof("admin listening on %s", ln.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- a.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		_ = a.server.Shutdown()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}

func (a *Admin) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case ctx.IsGet():
		switch path {
		case "/":
			fmt.Fprintf(ctx, "Welcome to %s\nVersion: %s\n", Name, Version)
		case "/vars":
			a.serveHuman(ctx)
		case "/metrics":
			if a.metrics != nil {
				a.metrics(ctx)
				return
			}
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		default:
			// /metrics.json, /vars.json, /admin/metrics.json and anything
			// else get the machine readable stats
			a.serveJSON(ctx)
		}
	case ctx.IsPut():
		switch path {
		case "/ratelimit/request":
			a.serveRatelimit(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (a *Admin) serveHuman(ctx *fasthttp.RequestCtx) {
	latest := a.agg.Latest()
	if latest == nil {
		return
	}
	ctx.SetBodyString(latest.Human())
}

func (a *Admin) serveJSON(ctx *fasthttp.RequestCtx) {
	vars := map[string]interface{}{}
	if latest := a.agg.Latest(); latest != nil {
		vars = latest.Vars()
	}
	body, err := json.Marshal(vars)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// serveRatelimit applies a new admission rate from a plain integer body.
// Malformed input is rejected with a client error and never touches the
// running test.
func (a *Admin) serveRatelimit(ctx *fasthttp.RequestCtx) {
	rate, err := strconv.ParseUint(string(ctx.PostBody()), 10, 64)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	a.limiter.SetRate(rate)
	log.Infof("admin: request ratelimit set to %d rps", rate)
}
