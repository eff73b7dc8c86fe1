// Command queued runs the queue protocol server: a TCP listener serving
// PUSH/POP/BPOP/BEGIN/COMMIT/ABORT/QUIT against one process-wide,
// in-memory queue table (spec §6).
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lordbasex/queued/internal/server"
)

func main() {
	cfg := server.DefaultConfig()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	cfg.ApplyEnvOverrides()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("unrecognized log level, defaulting to info")
	}
	entry := logrus.NewEntry(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, entry)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		entry.WithError(err).Fatal("failed to bind listener")
	}
	entry.WithField("addr", cfg.ListenAddr).Info("queued listening")

	srv := server.New(cfg, prometheus.DefaultRegisterer, entry)
	if err := srv.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		entry.WithError(err).Fatal("server exited unexpectedly")
	}
	entry.Info("queued shut down")
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}
