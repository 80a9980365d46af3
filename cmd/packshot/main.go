package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"packshot-studio/internal/config"
	"packshot-studio/internal/history"
	"packshot-studio/internal/httpclient"
	"packshot-studio/internal/packshot"
	"packshot-studio/internal/removebg"
)

func main() {
	_ = godotenv.Load()

	inDir := flag.String("in", "", "directory with source product photos")
	outDir := flag.String("out", "packshots", "output directory")
	removeBackground := flag.Bool("remove-bg", false, "strip backgrounds via the remote service")
	flag.Parse()

	if strings.TrimSpace(*inDir) == "" {
		fmt.Fprintln(os.Stderr, "usage: packshot -in <dir> [-out <dir>] [-remove-bg]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	items, err := readImages(*inDir)
	if err != nil {
		logger.Error("reading input directory failed", "err", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		logger.Info("no images found", "dir", *inDir)
		return
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:            cfg.PreferIPv4,
		Timeout:               cfg.HTTPTimeout,
		ResponseHeaderTimeout: cfg.RemoveTimeout,
	})

	remover := removebg.New(removebg.Options{
		APIKey:        cfg.RemoveBGAPIKey,
		BaseURL:       cfg.RemoveBGURL,
		HTTPClient:    httpClient,
		Logger:        logger,
		MaxMegapixels: cfg.MaxMegapixels,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Timeout:       cfg.RemoveTimeout,
	})

	processor := packshot.New(packshot.ProcessorOptions{
		Remover: remover,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := processor.ProcessAll(ctx, items, packshot.Options{
		RemoveBackground: *removeBackground,
		FrameSize:        cfg.FrameSize,
		Concurrency:      cfg.MaxConcurrent,
	})

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("creating output directory failed", "err", err)
		os.Exit(1)
	}

	ok := 0
	for i, res := range results {
		if res.Error != "" {
			logger.Warn("item failed", "file", items[i].Filename, "err", res.Error)
			continue
		}
		dest := filepath.Join(*outDir, res.Filename)
		if err := os.WriteFile(dest, res.Data, 0o644); err != nil {
			logger.Warn("writing output failed", "file", dest, "err", err)
			continue
		}
		ok++
	}

	if cfg.HistoryDB != "" {
		store, err := history.New(cfg.HistoryDB)
		if err != nil {
			logger.Warn("history store unavailable", "err", err)
		} else {
			defer store.Close()
			originals := make([]string, len(items))
			for i, item := range items {
				originals[i] = item.Filename
			}
			if _, err := store.RecordBatch("cli", originals, results); err != nil {
				logger.Warn("history write failed", "err", err)
			}
		}
	}

	logger.Info("done", "processed", ok, "failed", len(results)-ok, "out", *outDir)
}

func readImages(dir string) ([]packshot.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []packshot.Item
	for _, entry := range entries {
		if entry.IsDir() || !isImageName(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		items = append(items, packshot.Item{Filename: entry.Name(), Data: data})
	}
	return items, nil
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
