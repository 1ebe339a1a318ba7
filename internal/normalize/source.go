// Package normalize turns raw instruction, register and directive
// documentation into canonical records and writes one store per
// (document kind, architecture or assembler).
package normalize

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"asmlsp/internal/schema"
)

// Format is a raw documentation encoding.
type Format string

const (
	FormatXML  Format = "xml"
	FormatHTML Format = "html"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXML, FormatHTML, FormatText, FormatJSON:
		return f, nil
	case "txt", "table":
		return FormatText, nil
	case "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// DetectFormat guesses the format from a file extension.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatXML, true
	case ".html", ".htm":
		return FormatHTML, true
	case ".txt", ".tbl", ".tsv":
		return FormatText, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Source describes one raw input. Arch and Assembler are optional hints used
// when the raw data does not say.
type Source struct {
	Path      string
	Kind      schema.DocKind
	Format    Format
	Arch      schema.Architecture
	Assembler schema.Assembler
}

// Extractor parses one raw encoding into canonical records of src.Kind.
type Extractor interface {
	Extract(r io.Reader, src Source) (schema.Records, error)
}

// ExtractorFor returns the extractor for f.
func ExtractorFor(f Format) (Extractor, error) {
	switch f {
	case FormatXML:
		return xmlExtractor{}, nil
	case FormatHTML:
		return htmlExtractor{}, nil
	case FormatText:
		return textExtractor{}, nil
	case FormatJSON:
		return jsonExtractor{}, nil
	}
	return nil, fmt.Errorf("no extractor for format %q", f)
}
