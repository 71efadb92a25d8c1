package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/app"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/router"
	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/utilities"
)

const defaultAddr = "127.0.0.1:8431"

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting zippora bridge")

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("assemble core: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			sugar.Warnf("close core: %v", err)
		}
	}()

	res, err := a.Start(ctx)
	if err != nil {
		sugar.Warnf("start: %v", err)
	}
	if res.PromptReview {
		sugar.Info("review prompt due")
	}

	addr := os.Getenv("BRIDGE_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.RegisterRoutes(a, sugar.Named("bridge")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("bridge is listening; press Ctrl+C to stop", "addr", addr, "state", res.State.String())

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
