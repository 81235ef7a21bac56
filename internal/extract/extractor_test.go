package extract

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/imageproc"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
)

type fakeText struct {
	text  string
	ok    bool
	calls atomic.Int32
}

func (f *fakeText) Read(context.Context, pdf.Document, int) (string, bool) {
	f.calls.Add(1)
	return f.text, f.ok
}

type fakePages struct {
	n   int
	err error
}

func (f fakePages) PageCount(context.Context, pdf.Document) (int, error) { return f.n, f.err }

type fakeRaster struct {
	img   image.Image
	err   error
	calls int
}

func (f *fakeRaster) Rasterize(context.Context, pdf.Document, int, int) (image.Image, error) {
	f.calls++
	return f.img, f.err
}

type step struct {
	text  string
	err   error
	block bool
}

type fakeEngine struct {
	mu    sync.Mutex
	steps []step
	calls int
	opts  []ocr.Options
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, _ image.Image, opts ocr.Options) (string, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if i >= len(f.steps) {
		return "", nil
	}
	s := f.steps[i]
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

type savedCrop struct {
	document string
	region   int
	bounds   image.Rectangle
}

type fakeSink struct {
	saved []savedCrop
	err   error
}

func (f *fakeSink) Save(_ context.Context, document string, region int, img image.Image) error {
	f.saved = append(f.saved, savedCrop{document: document, region: region, bounds: img.Bounds()})
	return f.err
}

func testPipeline() PipelineConfig {
	c := captionPipeline("test")
	c.Regions = []imageproc.Region{
		{Left: 0, Top: 0, Right: 50, Bottom: 20},
		{Left: 0, Top: 20, Right: 50, Bottom: 40},
		{Left: 0, Top: 40, Right: 50, Bottom: 60},
		{Left: 0, Top: 60, Right: 50, Bottom: 80},
	}
	c.OCRTimeout = common.Duration(time.Second)
	return c
}

func testPage() image.Image {
	return imaging.New(100, 100, color.White)
}

func testDoc() pdf.Document {
	return pdf.FromBytes("acordao", []byte("%PDF-1.4"))
}

func diagCodes(r *Result) []string {
	codes := make([]string, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestExtract_TextLayerSatisfies(t *testing.T) {
	engine := &fakeEngine{}
	raster := &fakeRaster{img: testPage()}
	x, err := New(testPipeline(), Deps{
		TextLayer:  &fakeText{text: "APELANTE: John Doe", ok: true},
		Rasterizer: raster,
		Engine:     engine,
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, constants.StateSatisfied, res.State)
	v, ok := res.Get(constants.FieldApelante)
	require.True(t, ok)
	assert.Equal(t, "John Doe", v)
	assert.Equal(t, constants.SourceTextLayer, res.Fields[constants.FieldApelante].Source)
	assert.Equal(t, -1, res.Fields[constants.FieldApelante].Region)
	assert.Equal(t, 1, res.Found())

	// every configured field has a key
	assert.Len(t, res.Fields, len(x.Fields()))
	for _, name := range x.Fields() {
		assert.Contains(t, res.Fields, name)
	}
	assert.Zero(t, raster.calls)
	assert.Zero(t, engine.calls)
}

func TestExtract_FallsBackToOCR(t *testing.T) {
	engine := &fakeEngine{steps: []step{
		{text: "APELANTE: Jane Roe APELADO: Richard Roe"},
		{text: "APELANTE: Someone Else\nR$ 1234,56"},
		{text: ""},
		{text: "Apelação Cível nº 1234567-89.2020.8.26.0100"},
	}}
	sink := &fakeSink{}
	x, err := New(testPipeline(), Deps{
		TextLayer:  &fakeText{},
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     engine,
		Sink:       sink,
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, constants.StateDone, res.State)
	assert.Equal(t, 4, engine.calls)

	apelante := res.Fields[constants.FieldApelante]
	require.NotNil(t, apelante)
	assert.Equal(t, "Jane Roe", apelante.Value)
	assert.Equal(t, constants.SourceOCR, apelante.Source)
	assert.Equal(t, 0, apelante.Region)

	v, _ := res.Get(constants.FieldApelado)
	assert.Equal(t, "Richard Roe", v)
	v, _ = res.Get(constants.FieldValor)
	assert.Equal(t, "R$ 1.234,56", v)
	assert.Equal(t, 1, res.Fields[constants.FieldValor].Region)
	v, _ = res.Get(constants.FieldApelacaoCivel)
	assert.Equal(t, "Nº 1234567-89.2020.8.26.0100", v)

	require.Len(t, res.RegionText, 4)
	assert.Equal(t, "APELANTE: Jane Roe APELADO: Richard Roe", res.RegionText[0])

	require.Len(t, sink.saved, 4)
	assert.Equal(t, "acordao", sink.saved[2].document)
	assert.Equal(t, 2, sink.saved[2].region)
	assert.Equal(t, image.Rect(0, 0, 50, 20), sink.saved[2].bounds)

	for _, o := range engine.opts {
		assert.Equal(t, constants.PSMSparseText, o.PageSegMode)
		assert.Equal(t, constants.DefaultWhitelist, o.Whitelist)
	}
	assert.Contains(t, diagCodes(res), "NO_MATCH")
}

func TestExtract_TextLayerWinsOverOCR(t *testing.T) {
	cfg := testPipeline()
	cfg.Policy = PolicyAlways
	engine := &fakeEngine{steps: []step{{text: "APELANTE: Wrong Name APELADO: Banco X"}}}
	x, err := New(cfg, Deps{
		TextLayer:  &fakeText{text: "APELANTE: Maria da Silva\n", ok: true},
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     engine,
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, constants.StateDone, res.State)
	v, _ := res.Get(constants.FieldApelante)
	assert.Equal(t, "Maria da Silva", v)
	assert.Equal(t, constants.SourceTextLayer, res.Fields[constants.FieldApelante].Source)
	v, _ = res.Get(constants.FieldApelado)
	assert.Equal(t, "Banco X", v)
	assert.Equal(t, constants.SourceOCR, res.Fields[constants.FieldApelado].Source)
}

func TestExtract_PageOutOfRange(t *testing.T) {
	text := &fakeText{text: "APELANTE: X", ok: true}
	raster := &fakeRaster{img: testPage()}
	x, err := New(testPipeline(), Deps{
		TextLayer:  text,
		Pages:      fakePages{n: 1},
		Rasterizer: raster,
		Engine:     &fakeEngine{},
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, constants.StatePageOutOfRange, res.State)
	assert.Zero(t, res.Found())
	assert.Len(t, res.Fields, len(x.Fields()))
	assert.Equal(t, []string{"PAGE_OUT_OF_RANGE"}, diagCodes(res))
	assert.Zero(t, text.calls.Load())
	assert.Zero(t, raster.calls)
}

func TestExtract_PageCountFailureIsNotFatal(t *testing.T) {
	x, err := New(testPipeline(), Deps{
		TextLayer:  &fakeText{text: "AGRAVANTE: Estado", ok: true},
		Pages:      fakePages{err: errors.New("xref broken")},
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     &fakeEngine{},
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)
	v, _ := res.Get(constants.FieldAgravante)
	assert.Equal(t, "Estado", v)
	assert.Equal(t, []string{"ERROR"}, diagCodes(res))
}

func TestExtract_RegionFailuresAreSkipped(t *testing.T) {
	cfg := testPipeline()
	cfg.OCRTimeout = common.Duration(20 * time.Millisecond)
	cfg.Regions = append(cfg.Regions, imageproc.Region{Left: 5000, Top: 5000, Right: 6000, Bottom: 6000})
	engine := &fakeEngine{steps: []step{
		{err: errors.New("tesseract crashed")},
		{block: true},
		{err: common.ErrOCRFailure},
		{text: "EMBARGANTE: Fulano de Tal"},
	}}
	x, err := New(cfg, Deps{
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     engine,
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, constants.StateDone, res.State)
	v, ok := res.Get(constants.FieldEmbargante)
	require.True(t, ok)
	assert.Equal(t, "Fulano de Tal", v)
	assert.Equal(t, 4, engine.calls, "empty region must not reach the engine")
	assert.Equal(t, []string{"OCR_FAILURE", "OCR_TIMEOUT", "OCR_FAILURE", "REGION_OUT_OF_BOUNDS"}, diagCodes(res))
	assert.Equal(t, 4, res.Diagnostics[3].Region)
}

func TestExtract_EngineUnavailablePropagates(t *testing.T) {
	engine := &fakeEngine{steps: []step{{err: ocr.ErrEngineUnavailable}}}
	x, err := New(testPipeline(), Deps{
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     engine,
	})
	require.NoError(t, err)

	_, err = x.Extract(context.Background(), testDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)
	assert.Equal(t, 1, engine.calls)
}

func TestExtract_RasterizeFailure(t *testing.T) {
	engine := &fakeEngine{}
	x, err := New(testPipeline(), Deps{
		Rasterizer: &fakeRaster{err: errors.New("pdftoppm: exit status 1")},
		Engine:     engine,
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, constants.StateDone, res.State)
	assert.Zero(t, res.Found())
	assert.Equal(t, []string{"RASTERIZE_FAILED"}, diagCodes(res))
	assert.Zero(t, engine.calls)
}

func TestExtract_PolicyNever(t *testing.T) {
	cfg := testPipeline()
	cfg.Policy = PolicyNever
	x, err := New(cfg, Deps{TextLayer: &fakeText{}})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, constants.StateDone, res.State)
	assert.Zero(t, res.Found())
}

func TestExtract_CanonicalizationFailsOpen(t *testing.T) {
	x, err := New(testPipeline(), Deps{
		TextLayer: &fakeText{
			text: "Apelação Cível nº 1234567-89.2020.8.26.0100\nValor da causa: R$ 12.34,5\n",
			ok:   true,
		},
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     &fakeEngine{},
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)

	v, _ := res.Get(constants.FieldApelacaoCivel)
	assert.Equal(t, "Nº 1234567-89.2020.8.26.0100", v)
	v, _ = res.Get(constants.FieldValor)
	assert.Equal(t, "12.34,5", v)
	assert.Equal(t, "12.34,5", res.Fields[constants.FieldValor].Raw)
	assert.Equal(t, []string{"CANONICALIZATION_FAILED"}, diagCodes(res))
}

func TestExtract_SinkErrorsAreDiagnostics(t *testing.T) {
	x, err := New(testPipeline(), Deps{
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     &fakeEngine{steps: []step{{text: "APELADO: Banco"}}},
		Sink:       &fakeSink{err: errors.New("disk full")},
	})
	require.NoError(t, err)

	res, err := x.Extract(context.Background(), testDoc())
	require.NoError(t, err)
	v, _ := res.Get(constants.FieldApelado)
	assert.Equal(t, "Banco", v)
	assert.Len(t, res.Diagnostics, 4)
	for _, d := range res.Diagnostics {
		assert.Equal(t, StageArtifact, d.Stage)
	}
}

func TestExtract_ConcurrentDocuments(t *testing.T) {
	x, err := New(testPipeline(), Deps{
		TextLayer:  &fakeText{text: "APELANTE: Ana\nAPELADO: Bruno", ok: true},
		Rasterizer: &fakeRaster{img: testPage()},
		Engine:     &fakeEngine{},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := x.Extract(context.Background(), testDoc())
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	ids := map[string]bool{}
	for _, r := range results {
		require.NotNil(t, r)
		v, _ := r.Get(constants.FieldApelado)
		assert.Equal(t, "Bruno", v)
		ids[r.ID.String()] = true
	}
	assert.Len(t, ids, len(results))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(testPipeline(), Deps{TextLayer: &fakeText{}})
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)

	bad := testPipeline()
	bad.Regions = []imageproc.Region{{Left: 10, Top: 10, Right: 5, Bottom: 20}}
	_, err = New(bad, Deps{Rasterizer: &fakeRaster{}, Engine: &fakeEngine{}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	noName := testPipeline()
	noName.Name = ""
	_, err = New(noName, Deps{Rasterizer: &fakeRaster{}, Engine: &fakeEngine{}})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodePreset, appErr.Code)
}

func TestResult_ValuesAndParty(t *testing.T) {
	r := newResult("doc", "", "p", 1, []string{constants.FieldApelante, constants.FieldAgravado, constants.FieldValor})
	r.set(constants.FieldAgravado, &FieldValue{Value: "Banco"})
	assert.False(t, r.set(constants.FieldAgravado, &FieldValue{Value: "Other"}))
	assert.False(t, r.set("UNKNOWN", &FieldValue{Value: "x"}))

	vals := r.Values()
	assert.Len(t, vals, 3)
	assert.Nil(t, vals[constants.FieldApelante])
	require.NotNil(t, vals[constants.FieldAgravado])
	assert.Equal(t, "Banco", *vals[constants.FieldAgravado])

	name, value, ok := r.Party(constants.RolePassive)
	assert.True(t, ok)
	assert.Equal(t, constants.FieldAgravado, name)
	assert.Equal(t, "Banco", value)
	_, _, ok = r.Party(constants.RoleActive)
	assert.False(t, ok)
}
