package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/BioHazard786/sensorlink/internal/broker"
	"github.com/BioHazard786/sensorlink/internal/config"
	"github.com/BioHazard786/sensorlink/internal/logging"
	"github.com/BioHazard786/sensorlink/internal/server"
	"github.com/BioHazard786/sensorlink/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var opts config.ServerOptions
	showVersion := flag.BoolP("version", "v", false, "Print version and exit")
	flag.StringVarP(&opts.Port, "port", "p", "", "Port to listen on (env PORT, default 8080)")
	flag.StringVar(&opts.Token, "token", "", "Shared token clients must present (env BROKER_TOKEN)")
	flag.Float64Var(&opts.PublishRate, "publish-rate", 0, "Publications per second allowed per client (env PUBLISH_RATE)")
	flag.IntVar(&opts.PublishBurst, "publish-burst", 0, "Publication burst allowed per client (env PUBLISH_BURST)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	closeLog := logging.Init(slog.LevelInfo)
	defer closeLog()

	if err := run(opts); err != nil {
		slog.Error("broker failed", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func run(opts config.ServerOptions) error {
	cfg, err := config.LoadServer(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Create the Hub and run its event loop
	hub := broker.NewHub(
		broker.WithToken(cfg.Token),
		broker.WithPublishLimit(cfg.PublishRate, cfg.PublishBurst),
		broker.WithLogger(slog.Default()),
	)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// 2. Serve the websocket and health endpoints
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting broker", "addr", cfg.Addr, "token", cfg.Token != "", "publish_rate", cfg.PublishRate)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// 3. Stop accepting connections, then disconnect the remaining clients
	slog.Info("shutting down broker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}

	stopHub()
	<-hub.Done()
	return nil
}
