// ABOUTME: File feed source reading a JSON or YAML asset of records
// ABOUTME: Auto-detects the format from content and validates the whole set before returning

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/feedsync/internal/models"
	"gopkg.in/yaml.v3"
)

// Format selects how a FileSource decodes its asset.
type Format int

const (
	// FormatAuto picks JSON for content starting with '{' or '[' and YAML otherwise.
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "auto"
	}
}

// feedDocument is the object form of an asset: {"items": [...]}.
type feedDocument struct {
	Items []models.FeedRecord `json:"items" yaml:"items"`
}

// FileSource reads the complete feed from a local asset file.
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a source for path. The format is inferred from the
// extension when it is .json, .yaml or .yml.
func NewFileSource(path string) *FileSource {
	format := FormatAuto
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return &FileSource{path: path, format: format}
}

// Path returns the asset path.
func (s *FileSource) Path() string {
	return s.path
}

// FetchFeed reads, decodes and validates the asset.
func (s *FileSource) FetchFeed(ctx context.Context) ([]models.FeedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read feed asset: %w", err)
	}

	records, err := Decode(data, s.format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	if err := models.ValidateSet(records); err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.path, err)
	}
	return records, nil
}

// Decode parses an asset in either array form or {"items": [...]} form.
func Decode(data []byte, format Format) ([]models.FeedRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty feed asset")
	}

	if format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '{' || trimmed[0] == '[' {
			format = FormatJSON
		}
	}

	unmarshal := yaml.Unmarshal
	if format == FormatJSON {
		unmarshal = json.Unmarshal
	}

	if isList(trimmed, format) {
		var records []models.FeedRecord
		if err := unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return models.Clone(records), nil
	}

	var doc feedDocument
	if err := unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return models.Clone(doc.Items), nil
}

func isList(data []byte, format Format) bool {
	if format == FormatJSON {
		return data[0] == '['
	}
	return data[0] == '-'
}
