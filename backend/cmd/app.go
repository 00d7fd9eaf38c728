package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/watch-together/backend/metrics"
	httpServer "github.com/adwski/watch-together/backend/server/http"
	websocketServer "github.com/adwski/watch-together/backend/server/websocket"
	"github.com/adwski/watch-together/backend/service"
	store "github.com/adwski/watch-together/backend/storage/memory"
	sw "github.com/adwski/watch-together/backend/switch"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load() // dev convenience, missing .env is fine

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", addrFromEnv("API_PORT", ":8080"), "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", addrFromEnv("PORT", ":4000"), "websocket relay listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	memStore := store.NewMemStore()
	mtrcs := metrics.New(memStore.RoomCount)
	svc := service.NewService(service.Config{
		RoomStore: memStore,
		Switch:    sw.NewSwitch(&logger),
		Observer:  mtrcs,
		Logger:    &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:     &logger,
		RoomViewer: svc,
		Metrics:    mtrcs.Handler(),
		ListenAddr: *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:       &logger,
		RelayService: svc,
		ListenAddr:   *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}

// addrFromEnv turns a PORT-style env var into a listen address,
// falling back to def when unset.
func addrFromEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return ":" + v
	}
	return def
}
