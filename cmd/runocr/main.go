package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
	"github.com/joseph-ayodele/court-captions/internal/server"
)

var errUsage = errors.New("usage: runocr [flags] <document.pdf>")

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("runocr failed", "error", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var (
		preset    = flag.String("preset", "", "pipeline preset")
		policy    = flag.String("policy", "", "OCR policy: fallback | always | never")
		pageIndex = flag.Int("page", -1, "zero-based page index")
		artifacts = flag.String("artifacts", "", "save enhanced crops to this directory")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		return errUsage
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *preset != "" {
		cfg.Pipeline.Preset = *preset
	}
	if *policy != "" {
		cfg.Pipeline.Policy = *policy
	}
	if *pageIndex >= 0 {
		cfg.Pipeline.PageIndex = *pageIndex
	}
	if *artifacts != "" {
		cfg.Artifacts.Dir = *artifacts
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	x, err := server.BuildExtractor(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	doc, err := pdf.Load(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	start := time.Now()
	res, err := x.Extract(ctx, doc)
	dur := time.Since(start)
	if err != nil {
		return fmt.Errorf("extraction failed after %dms: %w", dur.Milliseconds(), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	logger.Info("extraction OK",
		"result_id", res.ID,
		"state", res.State,
		"fields", res.Found(),
		"regions", len(res.RegionText),
		"duration_ms", dur.Milliseconds(),
	)
	return nil
}
