package normalize

import (
	"strconv"
	"strings"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// rawForm is an operand syntax as written in the source.
type rawForm struct {
	assembler string
	syntax    string
}

// entry collects the fields of one raw record before validation. Extractors
// fill it from their encoding and hand it to build.
type entry struct {
	line        int
	name        string
	aliases     []string
	arches      []string
	assembler   string
	summary     string
	description string
	flags       string
	url         string
	forms       []rawForm
	class       string
	width       string
	signature   string
	examples    []string
}

// build validates e and converts it into canonical records, appending them
// to out.
func (e *entry) build(src Source, out *schema.Records) error {
	name := strings.TrimSpace(e.name)
	if name == "" {
		return asmerrors.NewParseError(src.Path, e.line, "missing required field 'name'", nil)
	}

	switch src.Kind {
	case schema.KindInstruction:
		arches, err := e.resolveArches(src)
		if err != nil {
			return err
		}
		inst := &schema.Instruction{
			Name:        name,
			Aliases:     uniqueFolded(e.aliases, name),
			Arches:      arches,
			Summary:     clean(e.summary),
			Description: clean(e.description),
			Flags:       clean(e.flags),
			URL:         strings.TrimSpace(e.url),
		}
		for _, f := range e.forms {
			syntax := clean(f.syntax)
			if syntax == "" {
				continue
			}
			asm, err := e.resolveAssembler(src, f.assembler, false)
			if err != nil {
				return err
			}
			inst.Forms = appendForm(inst.Forms, schema.Form{Assembler: asm, Syntax: syntax})
		}
		out.Instructions = append(out.Instructions, inst)

	case schema.KindRegister:
		arches, err := e.resolveArches(src)
		if err != nil {
			return err
		}
		width := 0
		if w := strings.TrimSpace(e.width); w != "" {
			width, err = strconv.Atoi(w)
			if err != nil || width < 0 {
				return asmerrors.NewParseError(src.Path, e.line, "invalid register width "+strconv.Quote(w), err)
			}
		}
		aliases := append([]string{name}, uniqueFolded(e.aliases, name)...)
		for _, a := range arches {
			out.Registers = append(out.Registers, &schema.Register{
				Name:        name,
				Aliases:     append([]string(nil), aliases...),
				Arch:        a,
				Class:       schema.ParseRegisterClass(e.class),
				Width:       width,
				Description: clean(e.description),
			})
		}

	case schema.KindDirective:
		asm, err := e.resolveAssembler(src, e.assembler, true)
		if err != nil {
			return err
		}
		d := &schema.Directive{
			Name:        name,
			Assembler:   asm,
			Description: clean(firstNonEmpty(e.description, e.summary)),
			Signature:   clean(e.signature),
		}
		for _, ex := range e.examples {
			if ex = strings.TrimSpace(ex); ex != "" {
				d.Examples = appendUnique(d.Examples, ex)
			}
		}
		out.Directives = append(out.Directives, d)

	default:
		return asmerrors.NewParseError(src.Path, 0, "unknown document kind "+strconv.Quote(string(src.Kind)), nil)
	}
	return nil
}

// resolveArches parses the entry's architectures, falling back to the
// source hint, and expands composites.
func (e *entry) resolveArches(src Source) ([]schema.Architecture, error) {
	var parsed []schema.Architecture
	for _, raw := range e.arches {
		for _, part := range splitList(raw, ",;") {
			a, err := schema.ParseArchitecture(part)
			if err != nil {
				return nil, asmerrors.NewParseError(src.Path, e.line, err.Error(), nil)
			}
			parsed = append(parsed, a)
		}
	}
	if len(parsed) == 0 && src.Arch != "" {
		parsed = append(parsed, src.Arch)
	}
	if len(parsed) == 0 {
		return nil, asmerrors.NewParseError(src.Path, e.line,
			"no architecture for "+strconv.Quote(e.name)+" and none declared", nil)
	}
	return schema.ExpandAll(parsed), nil
}

// resolveAssembler parses raw, falling back to the source hint. When required
// is false an unknown assembler is still an error but an absent one is not.
func (e *entry) resolveAssembler(src Source, raw string, required bool) (schema.Assembler, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if src.Assembler == "" && required {
			return "", asmerrors.NewParseError(src.Path, e.line,
				"no assembler for "+strconv.Quote(e.name)+" and none declared", nil)
		}
		return src.Assembler, nil
	}
	a, err := schema.ParseAssembler(raw)
	if err != nil {
		return "", asmerrors.NewParseError(src.Path, e.line, err.Error(), nil)
	}
	return a, nil
}

// clean collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// splitList splits s on any of seps, trimming and dropping empty items.
func splitList(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// uniqueFolded drops blanks, case-insensitive duplicates and anything equal
// to exclude, keeping the first spelling seen.
func uniqueFolded(in []string, exclude string) []string {
	seen := map[string]bool{schema.Fold(exclude): true}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		f := schema.Fold(s)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, s)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func appendForm(forms []schema.Form, f schema.Form) []schema.Form {
	for _, x := range forms {
		if x == f {
			return forms
		}
	}
	return append(forms, f)
}
