package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/common"
)

type stubRunner struct {
	calls [][]string
	stdin [][]byte
	fn    func(ctx context.Context, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(ctx context.Context, name string, stdin io.Reader, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		s.stdin = append(s.stdin, b)
	}
	return s.fn(ctx, args)
}

func listLangs(langs string) func(context.Context, []string) ([]byte, []byte, error) {
	return func(_ context.Context, args []string) ([]byte, []byte, error) {
		if len(args) > 0 && args[0] == "--list-langs" {
			return []byte("List of available languages in \"/usr/share/tessdata/\" (2):\n" + langs), nil, nil
		}
		return []byte("APELANTE:  Maria\t da Silva\r\n\r\n\r\n\r\nAPELADO: Banco\n"), nil, nil
	}
}

func withFakeTesseract(t *testing.T) {
	t.Helper()
	prevLook, prevStat := lookPath, statFile
	lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	statFile = os.Stat
	t.Cleanup(func() { lookPath, statFile = prevLook, prevStat })
}

func blank(w, h int) image.Image {
	return imaging.New(w, h, color.White)
}

func TestNewTesseractEngine_VerifiesLanguage(t *testing.T) {
	withFakeTesseract(t)

	r := &stubRunner{fn: listLangs("eng\npor\n")}
	e, err := NewTesseractEngine(context.Background(), Config{Language: "por"}, r, nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/tesseract", e.Path())
	assert.Equal(t, []string{"/usr/bin/tesseract", "--list-langs"}, r.calls[0])

	r = &stubRunner{fn: listLangs("eng\n")}
	_, err = NewTesseractEngine(context.Background(), Config{Language: "por"}, r, nil)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestNewTesseractEngine_ListLangsFails(t *testing.T) {
	withFakeTesseract(t)
	r := &stubRunner{fn: func(context.Context, []string) ([]byte, []byte, error) {
		return nil, []byte("boom"), errors.New("exit status 1")
	}}
	_, err := NewTesseractEngine(context.Background(), Config{Language: "por"}, r, nil)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestResolveExecutable(t *testing.T) {
	prevLook, prevStat := lookPath, statFile
	t.Cleanup(func() { lookPath, statFile = prevLook, prevStat })

	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	statFile = func(string) (fs.FileInfo, error) { return nil, fs.ErrNotExist }

	_, err := ResolveExecutable("")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = ResolveExecutable("/opt/tess/bin/tesseract")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	lookPath = func(file string) (string, error) { return "/custom/" + file, nil }
	p, err := ResolveExecutable("")
	require.NoError(t, err)
	assert.Equal(t, "/custom/tesseract", p)

	p, err = ResolveExecutable("tesseract5")
	require.NoError(t, err)
	assert.Equal(t, "/custom/tesseract5", p)
}

func TestTesseractEngine_Args(t *testing.T) {
	e := &TesseractEngine{cfg: Config{Language: "por", TessdataDir: "/td"}}
	args := e.Args(Options{PageSegMode: constants.PSMSingleBlock, Whitelist: "AB1", PreserveInterwordSpacing: true})
	assert.Equal(t, []string{
		"stdin", "stdout", "-l", "por", "--psm", "6", "--oem", "3",
		"--tessdata-dir", "/td",
		"-c", "tessedit_char_whitelist=AB1",
		"-c", "preserve_interword_spaces=1",
	}, args)

	args = e.Args(Options{Language: "eng"})
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "--psm", "11", "--oem", "3", "--tessdata-dir", "/td"}, args)
}

func TestTesseractEngine_Recognize(t *testing.T) {
	withFakeTesseract(t)
	r := &stubRunner{fn: listLangs("por\n")}
	e, err := NewTesseractEngine(context.Background(), Config{Language: "por"}, r, nil)
	require.NoError(t, err)

	text, err := e.Recognize(context.Background(), blank(20, 10), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "APELANTE: Maria da Silva\n\nAPELADO: Banco", text)

	require.Len(t, r.stdin, 1)
	assert.Equal(t, []byte("\x89PNG"), r.stdin[0][:4])
}

func TestTesseractEngine_RecognizeErrors(t *testing.T) {
	e := &TesseractEngine{cfg: Config{Language: "por"}, path: "tesseract", runner: &stubRunner{
		fn: func(ctx context.Context, _ []string) ([]byte, []byte, error) {
			<-ctx.Done()
			return nil, nil, ctx.Err()
		},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Recognize(ctx, blank(4, 4), Options{})
	assert.ErrorIs(t, err, common.ErrOCRTimeout)

	e.runner = &stubRunner{fn: func(context.Context, []string) ([]byte, []byte, error) {
		return nil, []byte("Error in pixReadMem"), errors.New("exit status 1")
	}}
	_, err = e.Recognize(context.Background(), blank(4, 4), Options{})
	assert.ErrorIs(t, err, common.ErrOCRFailure)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "azure"}, nil)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}
