package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is a read-only PDF identified by name. Content may be supplied in
// memory; Path is used when the file already lives on disk.
type Document struct {
	Name    string
	Path    string
	Content []byte
}

// Load reads a PDF from disk.
func Load(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Name: NameFromPath(path), Path: path, Content: b}, nil
}

// FromBytes wraps in-memory content.
func FromBytes(name string, content []byte) Document {
	return Document{Name: name, Content: content}
}

// NameFromPath returns the base name without the .pdf extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Bytes returns the document content, reading Path when nothing is loaded.
func (d Document) Bytes() ([]byte, error) {
	if len(d.Content) > 0 {
		return d.Content, nil
	}
	if d.Path == "" {
		return nil, fmt.Errorf("document %q has neither content nor path", d.Name)
	}
	return os.ReadFile(d.Path)
}

// file returns a path the poppler tools can open. In-memory documents are
// written to a private temp dir that cleanup removes.
func (d Document) file() (string, func(), error) {
	if d.Path != "" {
		if _, err := os.Stat(d.Path); err == nil {
			return d.Path, func() {}, nil
		}
	}
	if len(d.Content) == 0 {
		return "", nil, fmt.Errorf("document %q has no readable content", d.Name)
	}
	dir, err := os.MkdirTemp("", "cc-doc-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	p := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(p, d.Content, 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	return p, cleanup, nil
}
