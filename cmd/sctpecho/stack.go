package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hrissan/sctpmux/internal/metrics"
	"github.com/hrissan/sctpmux/pionengine"
	"github.com/hrissan/sctpmux/sctpcore"
	"github.com/hrissan/sctpmux/sctpstats"
	"github.com/hrissan/sctpmux/sctpudp"
)

const shutdownTimeout = 5 * time.Second

// stack is everything a command needs to run one association at a time over UDP socket
type stack struct {
	manager *sctpcore.Manager
	link    *sctpudp.Link
	metrics *metrics.Server // nil if disabled
}

func newStats(ctx context.Context, cfg *Config) (sctpcore.Stats, *metrics.Server, error) {
	logStats := sctpstats.NewStatsLog(log.StandardLogger())
	logStats.SetPrintDrops(cfg.PrintDrops)
	if cfg.MetricsAddress == "" {
		return logStats, nil, nil
	}
	metricsServer, err := metrics.NewServer(cfg.MetricsAddress, "")
	if err != nil {
		return nil, nil, fmt.Errorf("setup metrics: %w", err)
	}
	metricStats, err := sctpstats.NewStatsMetrics(ctx, metricsServer.Meter)
	if err != nil {
		return nil, nil, fmt.Errorf("setup metrics: %w", err)
	}
	return sctpstats.Multi{logStats, metricStats}, metricsServer, nil
}

// Resources are created before any goroutine starts, so we fail fast.
func newStack(ctx context.Context, cfg *Config, listenAddress string, peer netip.AddrPort) (*stack, error) {
	st, metricsServer, err := newStats(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := sctpcore.DefaultOptions(st)
	socket, err := sctpudp.OpenSocket(listenAddress, opts.SocketBufferSize)
	if err != nil {
		return nil, err
	}
	engine := pionengine.New(pionengine.Config{
		LoggerFactory: pionengine.NewLogrusFactory(log.StandardLogger()),
	})
	m, err := sctpcore.NewManager(engine, opts)
	if err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &stack{
		manager: m,
		link:    sctpudp.NewLink(socket, peer, opts),
		metrics: metricsServer,
	}, nil
}

// run starts receiver and metrics server, runs work, then shuts everything down.
func (s *stack) run(ctx context.Context, work func(ctx context.Context) error) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		s.link.GoRunReceiver()
		return nil
	})
	if s.metrics != nil {
		log.Infof("running metrics server: %s%s", s.metrics.Addr, s.metrics.Endpoint)
		eg.Go(func() error {
			return s.metrics.Run(workCtx)
		})
	}

	var errs error
	if err := work(workCtx); err != nil {
		errs = multierror.Append(errs, err)
	}
	cancel()
	if err := s.shutdown(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := eg.Wait(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

func (s *stack) shutdown() error {
	var errs error

	s.manager.CloseAll()

	if err := s.link.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to close UDP socket: %w", err))
	}

	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Infof("shutting down metrics server")
		if err := s.metrics.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close metrics server: %w", err))
		}
	}

	return errs
}
