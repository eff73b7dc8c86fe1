// Package server wires the queue protocol's ambient concerns — TCP
// accept loop, admission control, rate limiting, connection tracking,
// and metrics — around the core engine in internal/txn, internal/queue
// and internal/protocol. None of this package decides protocol
// semantics; it only decides who gets to run them and when.
package server

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lordbasex/queued/internal/queue"
)

// Server accepts connections on a TCP listener and serves each one
// against a single shared queue.Table, the way spec §6 requires
// ("Exactly one process-wide QueueTable is shared by every accepted
// connection"). Adapted from the teacher's server/server.go accept loop,
// generalized from AMQP consumer setup to a plain net.Listener.
type Server struct {
	cfg   *Config
	table *queue.Table

	pool     *Pool
	limiter  *RateLimiter
	registry *Registry
	metrics  *Metrics
	log      *logrus.Entry
}

// New builds a Server ready to Serve. reg receives the Prometheus
// collectors (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests).
func New(cfg *Config, reg prometheus.Registerer, log *logrus.Entry) *Server {
	table := queue.NewTable()
	return &Server{
		cfg:      cfg,
		table:    table,
		pool:     NewPool(cfg.MaxConnections),
		limiter:  NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		registry: NewRegistry(log),
		metrics:  NewMetrics(reg, table),
		log:      log,
	}
}

// Serve accepts connections on ln until ctx is canceled or Accept fails.
// Each accepted connection is admitted through the Pool and served on
// its own goroutine; Serve itself blocks until the listener stops.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go s.sweepLoop(ctx)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.pool.Wait()
				return ctx.Err()
			}
			return err
		}

		admitErr := s.pool.Run(ctx, func() { s.handle(conn) })
		if admitErr != nil {
			conn.Close()
			s.pool.Wait()
			return admitErr
		}
	}
}

func (s *Server) handle(netConn net.Conn) {
	defer netConn.Close()

	remoteAddr := netConn.RemoteAddr().String()
	id := s.registry.Register(remoteAddr)
	s.metrics.ConnectionOpened()

	conn := NewConnection(id, remoteAddr, netConn, netConn, s.table, s.limiter, s.registry, s.metrics, s.log)
	conn.Serve()
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(StaleConnectionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.SweepStale(StaleConnectionSweepInterval)
		}
	}
}

// Table exposes the shared queue table, mainly so cmd/queue-cli-style
// embedders and tests can inspect it without a network round trip.
func (s *Server) Table() *queue.Table {
	return s.table
}
