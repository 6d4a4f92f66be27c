package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"paddock/internal/bundle"
	"paddock/internal/catalog"
	"paddock/internal/config"
	"paddock/internal/daemon"
	"paddock/internal/engine"
	"paddock/internal/inbox"
	"paddock/internal/ipc"
	"paddock/internal/logging"
	"paddock/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := bundle.Open(cfg)
	if err != nil {
		logger.Error("open bundle store", logging.Error(err))
		return
	}

	index, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog", logging.Error(err))
		_ = store.Close()
		return
	}
	defer index.Close()

	manager := session.NewManager(cfg, logger, index)
	eng := engine.New(cfg, logger, store, inbox.New(cfg, logger), manager)

	d, err := daemon.New(cfg, store, logger, eng)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	socketPath := filepath.Join(cfg.Paths.LogDir, "paddockd.sock")
	ipcServer, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("paddockd shutting down")
}
