package normalize

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

var textColumns = map[string]bool{
	"name": true, "aliases": true, "arch": true, "summary": true,
	"description": true, "syntax": true, "flags": true, "url": true,
	"class": true, "width": true, "assembler": true, "examples": true,
	"signature": true,
}

// textExtractor reads pipe-separated tables. Lines starting with '#' are
// comments; the first data line is a header naming the columns.
type textExtractor struct{}

func (textExtractor) Extract(r io.Reader, src Source) (schema.Records, error) {
	var out schema.Records
	var header []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cells := splitCells(line)

		if header == nil {
			for _, c := range cells {
				col := strings.ToLower(c)
				if !textColumns[col] {
					return out, asmerrors.NewParseError(src.Path, lineNo, "unknown column "+strconv.Quote(c), nil)
				}
				header = append(header, col)
			}
			if !contains(header, "name") {
				return out, asmerrors.NewParseError(src.Path, lineNo, "header has no 'name' column", nil)
			}
			continue
		}

		if len(cells) != len(header) {
			return out, asmerrors.NewParseError(src.Path, lineNo,
				"expected "+strconv.Itoa(len(header))+" cells, got "+strconv.Itoa(len(cells)), nil)
		}

		e := &entry{line: lineNo}
		for i, col := range header {
			textCell(e, col, cells[i])
		}
		if err := e.build(src, &out); err != nil {
			return out, err
		}
	}
	if err := scanner.Err(); err != nil {
		return out, asmerrors.NewParseError(src.Path, lineNo, "read failed", err)
	}
	if header == nil {
		return out, asmerrors.NewParseError(src.Path, 0, "missing header line", nil)
	}
	return out, nil
}

func textCell(e *entry, col, v string) {
	switch col {
	case "name":
		e.name = v
	case "aliases":
		e.aliases = splitList(v, ";")
	case "arch":
		if v != "" {
			e.arches = []string{v}
		}
	case "summary":
		e.summary = v
	case "description":
		e.description = v
	case "syntax":
		for _, item := range splitList(v, ";") {
			e.forms = append(e.forms, splitSyntax(item))
		}
	case "flags":
		e.flags = v
	case "url":
		e.url = v
	case "class":
		e.class = v
	case "width":
		e.width = v
	case "assembler":
		e.assembler = v
	case "examples":
		e.examples = splitList(v, ";")
	case "signature":
		e.signature = v
	}
}

// splitSyntax splits an "assembler:form" item. Items whose prefix is not an
// assembler name are taken as a form with no assembler.
func splitSyntax(item string) rawForm {
	if prefix, rest, ok := strings.Cut(item, ":"); ok {
		if _, err := schema.ParseAssembler(prefix); err == nil {
			return rawForm{assembler: strings.TrimSpace(prefix), syntax: strings.TrimSpace(rest)}
		}
	}
	return rawForm{syntax: item}
}

// splitCells splits a table row on '|'. A backslash escapes a literal pipe.
func splitCells(line string) []string {
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
