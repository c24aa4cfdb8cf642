// Package loader turns files on disk into domain documents. The file
// extension picks the extraction strategy.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"

	"studyrag/internal/domain"
)

var kinds = map[string]string{
	".txt":      domain.KindText,
	".text":     domain.KindText,
	".md":       domain.KindText,
	".markdown": domain.KindText,
	".pdf":      domain.KindPDF,
}

// Loader reads documents through an afero filesystem.
type Loader struct {
	fs afero.Fs
}

func New(fsys afero.Fs) *Loader {
	return &Loader{fs: fsys}
}

// Supported reports whether path has an extension the loader understands.
func Supported(path string) bool {
	_, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load extracts the text of the file at path.
func (l *Loader) Load(path string) (domain.Document, error) {
	kind, ok := kinds[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}
	info, err := l.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, path)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, path, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrUnreadableDocument, path)
	}

	var content string
	switch kind {
	case domain.KindPDF:
		content, err = l.loadPDF(path, info.Size())
	default:
		content, err = l.loadText(path)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, path, err)
	}
	return domain.Document{Path: path, Kind: kind, Content: content}, nil
}

func (l *Loader) loadText(path string) (string, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	mt := mimetype.Detect(data)
	if !utf8.Valid(data) || !isText(mt) {
		return "", fmt.Errorf("content looks like %s, not text", mt.String())
	}
	return string(data), nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") || strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

// loadPDF returns the plain text of every page. The pdf reader panics on
// some malformed files, so panics are turned into errors.
func (l *Loader) loadPDF(path string, size int64) (text string, err error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(f, size)
	if err != nil {
		return "", err
	}
	b, err := rdr.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ domain.Loader = (*Loader)(nil)
