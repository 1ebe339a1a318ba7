package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type jsonForm struct {
	Assembler string `json:"assembler"`
	Syntax    string `json:"syntax"`
}

type jsonEntry struct {
	Name        string     `json:"name"`
	Aliases     stringList `json:"aliases"`
	Arch        stringList `json:"arch"`
	Arches      stringList `json:"arches"`
	Assembler   string     `json:"assembler"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Flags       string     `json:"flags"`
	URL         string     `json:"url"`
	Forms       []jsonForm `json:"forms"`
	Syntax      stringList `json:"syntax"`
	Class       string     `json:"class"`
	Width       int        `json:"width"`
	Signature   string     `json:"signature"`
	Examples    stringList `json:"examples"`
}

type jsonDocument struct {
	Instructions []jsonEntry `json:"instructions"`
	Registers    []jsonEntry `json:"registers"`
	Directives   []jsonEntry `json:"directives"`
}

// jsonExtractor reads either an object with per-kind arrays or a bare array
// of entries of the declared kind.
type jsonExtractor struct{}

func (jsonExtractor) Extract(r io.Reader, src Source) (schema.Records, error) {
	var out schema.Records
	data, err := io.ReadAll(r)
	if err != nil {
		return out, asmerrors.NewParseError(src.Path, 0, "read failed", err)
	}

	var entries []jsonEntry
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &entries)
	} else {
		var doc jsonDocument
		err = json.Unmarshal(trimmed, &doc)
		switch src.Kind {
		case schema.KindInstruction:
			entries = doc.Instructions
		case schema.KindRegister:
			entries = doc.Registers
		case schema.KindDirective:
			entries = doc.Directives
		}
	}
	if err != nil {
		return out, asmerrors.NewParseError(src.Path, jsonErrorLine(trimmed, err), "malformed JSON", err)
	}

	for i := range entries {
		e := entries[i].toEntry()
		if err := e.build(src, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (j *jsonEntry) toEntry() *entry {
	e := &entry{
		name:        j.Name,
		aliases:     j.Aliases,
		arches:      append(append([]string(nil), j.Arch...), j.Arches...),
		assembler:   j.Assembler,
		summary:     j.Summary,
		description: j.Description,
		flags:       j.Flags,
		url:         j.URL,
		class:       j.Class,
		signature:   j.Signature,
		examples:    j.Examples,
	}
	if j.Width > 0 {
		e.width = strconv.Itoa(j.Width)
	}
	for _, f := range j.Forms {
		e.forms = append(e.forms, rawForm{assembler: f.Assembler, syntax: f.Syntax})
	}
	for _, s := range j.Syntax {
		e.forms = append(e.forms, splitSyntax(s))
	}
	return e
}

func jsonErrorLine(data []byte, err error) int {
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	var off int64
	switch {
	case errors.As(err, &se):
		off = se.Offset
	case errors.As(err, &te):
		off = te.Offset
	default:
		return 0
	}
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	return bytes.Count(data[:off], []byte("\n")) + 1
}
