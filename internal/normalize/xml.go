package normalize

import (
	"encoding/xml"
	"errors"
	"io"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

type xmlForm struct {
	Assembler string `xml:"assembler,attr"`
	Syntax    string `xml:"syntax,attr"`
	Text      string `xml:",chardata"`
}

type xmlEntry struct {
	Name        string    `xml:"name,attr"`
	Arch        string    `xml:"arch,attr"`
	Assembler   string    `xml:"assembler,attr"`
	Summary     string    `xml:"summary,attr"`
	URL         string    `xml:"url,attr"`
	Class       string    `xml:"class,attr"`
	Width       string    `xml:"width,attr"`
	Aliases     []string  `xml:"Alias"`
	Description string    `xml:"Description"`
	Flags       string    `xml:"Flags"`
	Forms       []xmlForm `xml:"Form"`
	Signature   string    `xml:"Signature"`
	Examples    []string  `xml:"Example"`
}

// xmlExtractor reads <InstructionSet>, <RegisterSet> and <DirectiveSet>
// documents. Set attributes apply to every entry inside the set.
type xmlExtractor struct{}

var xmlElements = map[schema.DocKind]string{
	schema.KindInstruction: "Instruction",
	schema.KindRegister:    "Register",
	schema.KindDirective:   "Directive",
}

func (xmlExtractor) Extract(r io.Reader, src Source) (schema.Records, error) {
	var out schema.Records
	want := xmlElements[src.Kind]

	dec := xml.NewDecoder(r)
	var setArch, setAsm []string // stacks of enclosing set attributes

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, xmlParseError(src, dec, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == want {
				line, _ := dec.InputPos()
				var raw xmlEntry
				if err := dec.DecodeElement(&raw, &t); err != nil {
					return out, xmlParseError(src, dec, err)
				}
				e := raw.toEntry(line)
				if len(e.arches) == 0 && len(setArch) > 0 {
					e.arches = []string{setArch[len(setArch)-1]}
				}
				if e.assembler == "" && len(setAsm) > 0 {
					e.assembler = setAsm[len(setAsm)-1]
				}
				if err := e.build(src, &out); err != nil {
					return out, err
				}
				continue
			}
			setArch = append(setArch, attrOr(t, "arch", top(setArch)))
			setAsm = append(setAsm, attrOr(t, "assembler", top(setAsm)))
		case xml.EndElement:
			if len(setArch) > 0 {
				setArch = setArch[:len(setArch)-1]
				setAsm = setAsm[:len(setAsm)-1]
			}
		}
	}
	return out, nil
}

func (x *xmlEntry) toEntry(line int) *entry {
	e := &entry{
		line:        line,
		name:        x.Name,
		aliases:     x.Aliases,
		assembler:   x.Assembler,
		summary:     x.Summary,
		description: x.Description,
		flags:       x.Flags,
		url:         x.URL,
		class:       x.Class,
		width:       x.Width,
		signature:   x.Signature,
		examples:    x.Examples,
	}
	if x.Arch != "" {
		e.arches = []string{x.Arch}
	}
	for _, f := range x.Forms {
		syntax := f.Syntax
		if syntax == "" {
			syntax = f.Text
		}
		e.forms = append(e.forms, rawForm{assembler: f.Assembler, syntax: syntax})
	}
	return e
}

func attrOr(t xml.StartElement, name, fallback string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name && a.Value != "" {
			return a.Value
		}
	}
	return fallback
}

func top(stack []string) string {
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}

func xmlParseError(src Source, dec *xml.Decoder, err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return asmerrors.NewParseError(src.Path, se.Line, "malformed XML", err)
	}
	line, _ := dec.InputPos()
	return asmerrors.NewParseError(src.Path, line, "malformed XML", err)
}
