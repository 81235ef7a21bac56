package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/court-captions/internal/async"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/extract"
	"github.com/joseph-ayodele/court-captions/internal/ingest"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
	repo "github.com/joseph-ayodele/court-captions/internal/repository"
)

// ErrDuplicate is returned by Process when an identical document was already
// stored and the job is not forced.
var ErrDuplicate = errors.New("document already extracted")

// DocumentExtractor is satisfied by *extract.Extractor.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc pdf.Document) (*extract.Result, error)
}

// ExtractionService turns queued jobs into stored results. The result store is
// optional; without one every job is extracted and nothing is deduplicated.
type ExtractionService struct {
	extractor DocumentExtractor
	results   repo.ResultRepository
	logger    *slog.Logger

	mu        sync.Mutex
	collected []*extract.Result
	skipped   []string
	fatal     error
}

func NewExtractionService(x DocumentExtractor, results repo.ResultRepository, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{extractor: x, results: results, logger: logger}
}

// Process loads, deduplicates, extracts and stores one document.
func (s *ExtractionService) Process(ctx context.Context, job async.Job) (*extract.Result, error) {
	logger := common.LoggerFromContext(ctx, s.logger).With("job_id", job.ID, "path", job.Path)

	doc, err := pdf.Load(job.Path)
	if err != nil {
		logger.Error("failed to read document", "error", err)
		return nil, err
	}
	hash := ingest.HashBytes(doc.Content)

	if s.results != nil && !job.Force {
		seen, err := s.results.ExistsByHash(ctx, hash)
		if err != nil {
			logger.Warn("dedup lookup failed, extracting anyway", "error", err)
		} else if seen {
			logger.Info("skipping already extracted document", "content_hash", hash)
			s.mu.Lock()
			s.skipped = append(s.skipped, job.Path)
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, job.Path)
		}
	}

	res, err := s.extractor.Extract(common.WithDocument(ctx, doc.Name), doc)
	if err != nil {
		if errors.Is(err, ocr.ErrEngineUnavailable) {
			s.mu.Lock()
			if s.fatal == nil {
				s.fatal = err
			}
			s.mu.Unlock()
		}
		return res, err
	}

	if s.results != nil {
		if err := s.results.Save(ctx, res, hash); err != nil {
			logger.Error("failed to store result", "result_id", res.ID, "error", err)
			return res, err
		}
	}
	s.mu.Lock()
	s.collected = append(s.collected, res)
	s.mu.Unlock()
	return res, nil
}

// Handle adapts Process to the worker queue. Duplicates are not failures.
// Once the engine was found unavailable every later job fails fast.
func (s *ExtractionService) Handle(ctx context.Context, job async.Job) error {
	if err := s.Fatal(); err != nil {
		return err
	}
	_, err := s.Process(ctx, job)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// Results returns the results processed so far, in completion order.
func (s *ExtractionService) Results() []*extract.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*extract.Result(nil), s.collected...)
}

// Skipped returns the paths of documents left out as already extracted, in
// the order they were seen.
func (s *ExtractionService) Skipped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.skipped...)
}

// Fatal returns the first engine-unavailable error seen, if any.
func (s *ExtractionService) Fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}
