package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-salas/internal"
	"chat-salas/moderation"
	"chat-salas/observability"
	"chat-salas/repositories"
	"chat-salas/server"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the relay lifecycle, and
// centralizes error reporting, so every deferred cleanup (the database close
// in particular) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. History database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Optional moderation
	var moderator *moderation.Moderator
	if config.BannedWords != "" {
		censorChar, err := internal.CharacterRune(config.CensorChar)
		if err != nil {
			return err
		}
		words, err := moderation.LoadWords(config.BannedWords)
		if err != nil {
			return err
		}
		m, err := moderation.NewModerator(words, censorChar, log)
		if err != nil {
			return fmt.Errorf("moderation setup failed: %w", err)
		}
		moderator = &m
		log.Info("Moderation enabled", "words", len(words))
	}

	// 4. Core wiring
	stats := observability.NewRelayStats()
	history := repositories.NewHistoryRepository(db, log, config.LimitMessages)
	registry := server.NewRegistry(log, history, stats)
	relay := server.New(log, registry, moderator, stats, config.Addr(), config.BufferSize)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Stats reporter
	reporter := observability.NewReporter(log, stats, config.MetricInterval)
	go func() {
		if err := reporter.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("stats reporter stopped", "error", err)
		}
	}()

	// 7. Serve until a signal or a listener error
	if err := relay.Listen(); err != nil {
		return err
	}
	errChan := make(chan error, 1)
	go func() {
		if err := relay.Serve(ctx); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		<-errChan
	case err, ok := <-errChan:
		if ok {
			return err
		}
	}

	log.Info("Program stopped cleanly")
	return nil
}
