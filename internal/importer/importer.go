package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/tally-dev/tally/internal/model"
)

// ErrFormatMismatch is returned when an input's column shape matches no
// known variant for its source.
var ErrFormatMismatch = errors.New("format mismatch")

// Parser converts a raw export into canonical Records.
// Row-level problems are reported as Issues and never abort the file.
type Parser interface {
	Parse(r io.Reader) ([]model.Record, []Issue, error)
	Source() model.Source
}

// Issue describes a row or cell that was defaulted or skipped.
type Issue struct {
	Row    int // 1-based row in the source file
	Field  string
	Value  string
	Reason string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("row %d: %s", i.Row, i.Reason)
	}
	return fmt.Sprintf("row %d: %s %q: %s", i.Row, i.Field, i.Value, i.Reason)
}

// Registry holds parsers by source.
type Registry struct {
	parsers map[model.Source]Parser
}

// FileInfo describes a candidate input file.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[model.Source]Parser)}
}

// Register adds a parser. Panics on duplicate source.
func (r *Registry) Register(p Parser) {
	key := p.Source()
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser source: " + string(key))
	}
	r.parsers[key] = p
}

// Get returns the parser for a source name, or nil.
func (r *Registry) Get(source string) Parser {
	src, ok := model.ParseSource(source)
	if !ok {
		return nil
	}
	return r.parsers[src]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CIBCParser{})
	r.Register(&AMEXParser{})
	r.Register(&CanonicalParser{})
	return r
}

// Scan returns files in dir whose extension matches ext (case-insensitive).
func Scan(dir, ext string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !HasExtension(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// HasExtension reports whether name ends in ext, ignoring case.
// ext may be given with or without the leading dot.
func HasExtension(name, ext string) bool {
	if ext == "" {
		return true
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readInput reads all of r, strips a UTF-8 BOM, and decodes non-UTF-8
// input as Windows-1252 (what banks' "Excel" CSV exports use).
func readInput(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding windows-1252 input: %w", err)
	}
	return decoded, nil
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
