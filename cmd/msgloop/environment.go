package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joeycumines/go-msgloop/atexit"
	"github.com/joeycumines/go-msgloop/config"
	"github.com/joeycumines/go-msgloop/msgloop"
)

// environment is the process-wide state shared by every command. It is
// populated by init, and torn down by running exit, in reverse order.
type environment struct {
	logger  *logiface.Logger[logiface.Event]
	cfg     *config.Config
	metrics *msgloop.Metrics
	exit    *atexit.Manager
}

func (x *environment) init(c *cli.Context) error {
	x.exit = atexit.New()

	cfg := config.Default()
	if path := c.GlobalString(`config`); path != `` {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if v := c.GlobalString(`log-level`); v != `` {
		cfg.LogLevel = v
	}
	if v := c.GlobalString(`metrics-addr`); v != `` {
		cfg.MetricsAddr = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	x.cfg = cfg

	level, _ := config.ParseLevel(cfg.LogLevel)
	x.logger = stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
		stumpy.L.WithCategoryRateLimits(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 30,
		}),
	).Logger()

	x.tuneRuntime()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := msgloop.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	x.metrics = metrics

	if cfg.MetricsAddr != `` {
		x.serveMetrics(reg, cfg.MetricsAddr)
	}

	return nil
}

func (x *environment) tuneRuntime() {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		x.logger.Debug().Log(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		x.logger.Warning().Err(err).Log(`failed to set GOMAXPROCS`)
	}
	x.exit.RegisterCallback(undo)

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		x.logger.Debug().Err(err).Log(`memory limit not set`)
	} else {
		x.logger.Debug().Int64(`limit`, limit).Log(`set GOMEMLIMIT`)
	}
}

func (x *environment) serveMetrics(reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle(`/metrics`, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		x.logger.Info().Str(`addr`, addr).Log(`serving metrics`)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			x.logger.Err().Err(err).Log(`metrics server failed`)
		}
	}()

	x.exit.RegisterCallback(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			x.logger.Warning().Err(err).Log(`metrics server shutdown failed`)
		}
	})
}

// loopOptions returns the options for a loop named name.
func (x *environment) loopOptions(name string) []msgloop.Option {
	return []msgloop.Option{
		msgloop.WithName(name),
		msgloop.WithLogger(x.logger),
		msgloop.WithMetrics(x.metrics),
		msgloop.WithDebugMode(x.cfg.DebugMode),
	}
}
