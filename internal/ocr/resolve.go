package ocr

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// swapped in tests
var (
	lookPath = exec.LookPath
	statFile = os.Stat
)

var wellKnownTesseract = map[string][]string{
	"windows": {
		`C:\Program Files\Tesseract-OCR\tesseract.exe`,
		`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
	},
	"darwin": {"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"},
	"linux":  {"/usr/bin/tesseract", "/usr/local/bin/tesseract"},
}

// ResolveExecutable finds the tesseract binary. An explicit path must exist;
// otherwise PATH is searched, then the platform's usual install locations.
func ResolveExecutable(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if strings.ContainsAny(explicit, `/\`) {
			if st, err := statFile(explicit); err == nil && !st.IsDir() {
				return explicit, nil
			}
			return "", fmt.Errorf("%w: tesseract not found at %s", ErrEngineUnavailable, explicit)
		}
		if p, err := lookPath(explicit); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %q not found in PATH", ErrEngineUnavailable, explicit)
	}
	if p, err := lookPath("tesseract"); err == nil {
		return p, nil
	}
	for _, candidate := range wellKnownTesseract[runtime.GOOS] {
		if st, err := statFile(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: tesseract not found in PATH or default locations; set TESSERACT_PATH", ErrEngineUnavailable)
}
