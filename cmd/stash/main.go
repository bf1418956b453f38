package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vtstore/internal/config"
	"vtstore/internal/stashdb"
)

func main() {
	conf, err := config.NewConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	var logger *zap.Logger
	if conf.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	stash, err := stashdb.NewStash(conf, logger)
	if err != nil {
		logger.Fatal("open stash", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stash.Run(gctx)
	})

	logger.Info("stash started",
		zap.String("file", conf.StoreFile),
		zap.Duration("interval", conf.StoreInterval),
		zap.Int("records", stash.Len()))

	if err := g.Wait(); err != nil {
		logger.Error("run", zap.Error(err))
	}

	if err := stash.SaveToDisk(context.Background()); err != nil {
		logger.Error("final save", zap.Error(err))
		os.Exit(1)
	}
}
