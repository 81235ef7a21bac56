package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/async"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/extract"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
	repo "github.com/joseph-ayodele/court-captions/internal/repository"
)

type fakeExtractor struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, doc pdf.Document) (*extract.Result, error) {
	f.calls.Add(1)
	res := &extract.Result{
		ID:        uuid.New(),
		Document:  doc.Name,
		Path:      doc.Path,
		Preset:    "caption-sparse",
		PageIndex: 1,
		Fields: map[string]*extract.FieldValue{
			constants.FieldProcesso: {Value: "Nº 0001234-56.2020.8.26.0100", Source: constants.SourceTextLayer, Region: -1},
		},
		Order:     []string{constants.FieldProcesso},
		State:     constants.StateSatisfied,
		StartedAt: time.Now().UTC(),
	}
	return res, f.err
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func openStore(t *testing.T) repo.ResultRepository {
	t.Helper()
	db, err := ConnectDB(context.Background(), common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return repo.NewResultRepository(db, nil)
}

func TestConnectDB_Disabled(t *testing.T) {
	db, err := ConnectDB(context.Background(), common.DatabaseConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestExtractionService_StoresAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := openStore(t)
	x := &fakeExtractor{}
	svc := NewExtractionService(x, store, nil)

	a := writeDoc(t, dir, "a.pdf", "%PDF-1.4 same")
	b := writeDoc(t, dir, "b.pdf", "%PDF-1.4 same")

	res, err := svc.Process(ctx, async.NewJob(a))
	require.NoError(t, err)
	assert.Equal(t, "a", res.Document)

	_, err = svc.Process(ctx, async.NewJob(b))
	require.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, svc.Handle(ctx, async.NewJob(b)), "duplicates are not failures")
	assert.EqualValues(t, 1, x.calls.Load())

	forced := async.NewJob(b)
	forced.Force = true
	_, err = svc.Process(ctx, forced)
	require.NoError(t, err)
	assert.EqualValues(t, 2, x.calls.Load())

	stored, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, svc.Results(), 2)
	assert.Equal(t, []string{b, b}, svc.Skipped())
}

func TestExtractionService_NoStore(t *testing.T) {
	dir := t.TempDir()
	x := &fakeExtractor{}
	svc := NewExtractionService(x, nil, nil)

	p := writeDoc(t, dir, "doc.pdf", "%PDF-1.4")
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Handle(context.Background(), async.NewJob(p)))
	}
	assert.EqualValues(t, 2, x.calls.Load())
	assert.Len(t, svc.Results(), 2)
	assert.Empty(t, svc.Skipped())
}

func TestExtractionService_MissingFile(t *testing.T) {
	svc := NewExtractionService(&fakeExtractor{}, nil, nil)
	err := svc.Handle(context.Background(), async.NewJob(filepath.Join(t.TempDir(), "gone.pdf")))
	require.Error(t, err)
	assert.NoError(t, svc.Fatal())
}

func TestExtractionService_EngineUnavailableIsFatal(t *testing.T) {
	dir := t.TempDir()
	x := &fakeExtractor{err: ocr.ErrEngineUnavailable}
	svc := NewExtractionService(x, nil, nil)

	err := svc.Handle(context.Background(), async.NewJob(writeDoc(t, dir, "doc.pdf", "%PDF")))
	require.ErrorIs(t, err, ocr.ErrEngineUnavailable)
	assert.True(t, errors.Is(svc.Fatal(), ocr.ErrEngineUnavailable))
	assert.Empty(t, svc.Results())

	err = svc.Handle(context.Background(), async.NewJob(writeDoc(t, dir, "next.pdf", "%PDF next")))
	require.ErrorIs(t, err, ocr.ErrEngineUnavailable)
	assert.EqualValues(t, 1, x.calls.Load(), "later jobs fail fast")
}

func TestBuildExtractor_TextOnly(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Pipeline.Preset = extract.PresetTextOnly
	x, err := BuildExtractor(context.Background(), cfg, slogDiscard())
	require.NoError(t, err)
	assert.Equal(t, extract.PresetTextOnly, x.Config().Name)
}

func TestBuildExtractor_UnknownPreset(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Pipeline.Preset = "does-not-exist"
	_, err := BuildExtractor(context.Background(), cfg, slogDiscard())
	require.Error(t, err)
}

func TestBuildExtractor_MissingEngine(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.OCR.ExecutablePath = filepath.Join(t.TempDir(), "no-tesseract")
	_, err := BuildExtractor(context.Background(), cfg, slogDiscard())
	require.ErrorIs(t, err, ocr.ErrEngineUnavailable)
}

func TestHealthServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	hs := NewHealthServer(slogDiscard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ServiceName))
	hs.MarkServing()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	hs.MarkNotServing()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
