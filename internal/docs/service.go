// Package docs renders the AsciiDoc help pages shown in the dashboard.
package docs

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

//go:embed help/*.adoc
var embedded embed.FS

// ErrInvalidName is returned for doc names that are not plain .adoc files.
var ErrInvalidName = errors.New("docs: invalid document name")

type Service struct {
	fsys  fs.FS
	cache map[string]string // filename -> html content
	mu    sync.RWMutex
}

// NewService serves docs from docsDir, or from the built-in help pages when
// docsDir is empty.
func NewService(docsDir string) *Service {
	var fsys fs.FS
	if docsDir == "" {
		fsys, _ = fs.Sub(embedded, "help")
	} else {
		fsys = os.DirFS(docsDir)
	}
	return NewServiceFS(fsys)
}

// NewServiceFS serves docs from the root of fsys.
func NewServiceFS(fsys fs.FS) *Service {
	return &Service{
		fsys:  fsys,
		cache: make(map[string]string),
	}
}

func (s *Service) GetDoc(ctx context.Context, filename string) (string, error) {
	if filename != path.Base(filename) || !strings.HasSuffix(filename, ".adoc") {
		return "", ErrInvalidName
	}

	s.mu.RLock()
	content, ok := s.cache[filename]
	s.mu.RUnlock()
	if ok {
		return content, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := fs.ReadFile(s.fsys, filename)
	if err != nil {
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false),
		configuration.WithAttribute("toc", "left"),
	)
	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("failed to convert asciidoc: %w", err)
	}

	html := output.String()

	s.mu.Lock()
	s.cache[filename] = html
	s.mu.Unlock()

	return html, nil
}

func (s *Service) ListDocs() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, err
	}

	var docs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}
