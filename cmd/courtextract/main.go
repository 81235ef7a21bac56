package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/court-captions/internal/async"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/export"
	"github.com/joseph-ayodele/court-captions/internal/extract"
	"github.com/joseph-ayodele/court-captions/internal/ingest"
	repo "github.com/joseph-ayodele/court-captions/internal/repository"
	"github.com/joseph-ayodele/court-captions/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// exitError carries the process exit status for an error returned by run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		printError("Error: %v\n", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func run() error {
	var (
		dir         = flag.String("dir", "", "directory to process PDFs from")
		recursive   = flag.Bool("recursive", false, "descend into subdirectories of --dir")
		preset      = flag.String("preset", "", "pipeline preset (overrides PIPELINE_PRESET)")
		policy      = flag.String("policy", "", "OCR policy: fallback | always | never")
		pageIndex   = flag.Int("page", -1, "zero-based page index (overrides the preset)")
		workers     = flag.Int("workers", 0, "parallel documents (overrides WORKERS)")
		out         = flag.String("out", "", "write an XLSX workbook to this path")
		asJSON      = flag.Bool("json", false, "print one JSON result per line")
		force       = flag.Bool("force", false, "extract documents already present in the result store")
		listPresets = flag.Bool("list-presets", false, "print the available presets and exit")
	)
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
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
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *recursive {
		cfg.Batch.Recursive = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if *listPresets {
		return printPresets(os.Stdout, cfg)
	}

	paths := flag.Args()
	if *dir == "" && len(paths) == 0 {
		flag.Usage()
		return &exitError{code: 2, err: errors.New("--dir or at least one PDF path is required")}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dir != "" {
		found, stats, err := ingest.FindPDFs(ctx, *dir, cfg.Batch.Recursive, true)
		if err != nil {
			return fmt.Errorf("scan %s: %w", *dir, err)
		}
		logger.Info("discovery complete", "dir", *dir,
			"scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		logger.Warn("no PDF documents to process")
		return nil
	}

	// The engine is verified here; a broken OCR setup stops before any document.
	extractor, err := server.BuildExtractor(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	var results repo.ResultRepository
	if db != nil {
		defer db.Close()
		results = repo.NewResultRepository(db, logger)
	}

	svc := server.NewExtractionService(extractor, results, logger)
	queue := async.NewWorkerQueue(svc.Handle, logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.DocumentTimeout.Std()),
	)

	for _, p := range paths {
		if svc.Fatal() != nil || ctx.Err() != nil {
			break
		}
		job := async.NewJob(p)
		job.Force = *force
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Warn("stopped queueing documents", "error", err)
			break
		}
	}
	queue.Shutdown(context.Background())

	if err := svc.Fatal(); err != nil {
		return fmt.Errorf("batch aborted: %w", err)
	}

	done := svc.Results()
	sort.Slice(done, func(i, j int) bool { return done[i].Path < done[j].Path })
	skipped := svc.Skipped()
	sort.Strings(skipped)

	if *asJSON {
		err = printJSON(os.Stdout, done)
	} else {
		err = printResults(os.Stdout, done, skipped)
	}
	if err != nil {
		logger.Error("failed to print results", "error", err)
	}

	if *out != "" {
		data, err := export.NewService(logger).ResultsXLSX(done, extractor.Fields())
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *out, err)
		}
	}

	processed, failed := queue.Stats()
	logger.Info("batch processing complete",
		"documents", len(paths),
		"extracted", len(done),
		"skipped", len(skipped),
		"processed", processed,
		"failures", failed,
		"output_file", *out)
	if failed > 0 {
		return &exitError{code: 3, err: fmt.Errorf("%d of %d documents failed", failed, len(paths))}
	}
	return nil
}

func printPresets(w io.Writer, cfg *common.Config) error {
	presets := extract.BuiltinPresets()
	if cfg.Pipeline.PresetsFile != "" {
		p, err := extract.LoadPresetsFile(cfg.Pipeline.PresetsFile)
		if err != nil {
			return err
		}
		presets = p
	}
	for _, name := range presets.Names() {
		pc, _ := presets.Get(name)
		if _, err := fmt.Fprintf(w, "%-18s page=%d policy=%s regions=%d psm=%d\n",
			name, pc.PageIndex, pc.Policy, len(pc.Regions), pc.OCR.PageSegMode); err != nil {
			return err
		}
	}
	return nil
}

func printResults(w io.Writer, results []*extract.Result, skipped []string) error {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "Document: %s\n", filepath.Base(r.Path))
		for _, name := range r.Order {
			v, ok := r.Get(name)
			if !ok {
				v = "(absent)"
			}
			fmt.Fprintf(&b, "  %s: %s\n", name, v)
		}
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "  ! %s %s region=%d: %s\n", d.Stage, d.Code, d.Region, d.Message)
		}
		b.WriteString("\n")
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, "Skipped %d already extracted (use --force to redo):\n", len(skipped))
		for _, p := range skipped {
			fmt.Fprintf(&b, "  %s\n", filepath.Base(p))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printJSON(w io.Writer, results []*extract.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s: %w", r.Document, err)
		}
	}
	return nil
}
