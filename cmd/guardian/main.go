package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ethereumdegen/stark-guardian/internal/app"
)

func main() {
	// Optional .env for local runs; the environment wins over the file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner()
	code := runner.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
