package query

import (
	"context"
	"fmt"
	"strings"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/kb"
	"asmlsp/internal/schema"
	"asmlsp/internal/token"
)

// Hover is rendered documentation for the token under the cursor.
type Hover struct {
	// Contents is markdown.
	Contents string
	// Kind is the candidate that matched.
	Kind  token.Kind
	Token token.Token
}

const groupSeparator = "\n\n---\n\n"

// Hover documents the token at the request position. Candidates are tried in
// priority order; the first with matching records is rendered. It returns
// ErrResolutionMiss when nothing matches.
func (e *Engine) Hover(ctx context.Context, req Request) (*Hover, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.KB == nil {
		return nil, asmerrors.ErrResolutionMiss
	}
	tok, ok := token.Resolve(req.Line, req.Col, req.dialect())
	if !ok {
		return nil, asmerrors.ErrResolutionMiss
	}
	f := req.filter()

	for _, k := range tok.Kinds {
		var render func() string
		switch k {
		case token.KindInstruction:
			if hits := req.KB.Instructions(tok.Text, f); len(hits) > 0 {
				render = func() string { return renderInstructions(hits, req.Config.Assemblers) }
			}
		case token.KindRegister:
			if hits := req.KB.Registers(tok.Text, f); len(hits) > 0 {
				render = func() string { return renderRegisters(hits) }
			}
		case token.KindDirective:
			if hits := req.KB.Directives(tok.DirectiveName(), f); len(hits) > 0 {
				render = func() string { return renderDirectives(hits) }
			}
		}
		if render == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Hover{Contents: render(), Kind: k, Token: tok}, nil
	}
	return nil, asmerrors.ErrResolutionMiss
}

// group is one rendered heading with the consecutive arches or assemblers
// that share the same body.
type group struct {
	name string
	tags []string
	body string
}

func appendGroup(groups []group, name, tag, body string) []group {
	if n := len(groups); n > 0 && groups[n-1].name == name && groups[n-1].body == body {
		groups[n-1].tags = append(groups[n-1].tags, tag)
		return groups
	}
	return append(groups, group{name: name, tags: []string{tag}, body: body})
}

func joinGroups(groups []group) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		s := fmt.Sprintf("## %s (%s)", g.name, strings.Join(g.tags, ", "))
		if g.body != "" {
			s += "\n\n" + g.body
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, groupSeparator)
}

func renderInstructions(hits []kb.InstructionHit, asms []schema.Assembler) string {
	var groups []group
	for _, h := range hits {
		groups = appendGroup(groups, h.Instruction.Name, string(h.Arch), instructionBody(h.Instruction, asms))
	}
	return joinGroups(groups)
}

func instructionBody(in *schema.Instruction, asms []schema.Assembler) string {
	var sections []string
	if in.Summary != "" {
		sections = append(sections, "**"+in.Summary+"**")
	}
	if in.Description != "" && in.Description != in.Summary {
		sections = append(sections, in.Description)
	}
	if forms := formsFor(in.Forms, asms); len(forms) > 0 {
		lines := make([]string, 0, len(forms))
		for _, f := range forms {
			line := "- `" + f.Syntax + "`"
			if f.Assembler != "" {
				line += " (" + string(f.Assembler) + ")"
			}
			lines = append(lines, line)
		}
		sections = append(sections, "Forms:\n"+strings.Join(lines, "\n"))
	}
	if in.Flags != "" {
		sections = append(sections, "Flags: "+in.Flags)
	}
	if len(in.Aliases) > 0 {
		sections = append(sections, "Aliases: "+codeList(in.Aliases))
	}
	if in.URL != "" {
		sections = append(sections, "[Reference]("+in.URL+")")
	}
	return strings.Join(sections, "\n\n")
}

func renderRegisters(hits []kb.RegisterHit) string {
	var groups []group
	for _, h := range hits {
		groups = appendGroup(groups, h.Register.Name, string(h.Arch), registerBody(h.Register))
	}
	return joinGroups(groups)
}

func registerBody(r *schema.Register) string {
	var sections []string
	facts := "Class: " + string(r.Class)
	if r.Width > 0 {
		facts += fmt.Sprintf(", width: %d bits", r.Width)
	}
	sections = append(sections, facts)
	var others []string
	for _, a := range r.Aliases {
		if a != r.Name {
			others = append(others, a)
		}
	}
	if len(others) > 0 {
		sections = append(sections, "Aliases: "+codeList(others))
	}
	if r.Description != "" {
		sections = append(sections, r.Description)
	}
	return strings.Join(sections, "\n\n")
}

func renderDirectives(hits []kb.DirectiveHit) string {
	var groups []group
	for _, h := range hits {
		groups = appendGroup(groups, h.Directive.Name, string(h.Assembler), directiveBody(h.Directive))
	}
	return joinGroups(groups)
}

func directiveBody(d *schema.Directive) string {
	var sections []string
	if d.Signature != "" {
		sections = append(sections, "```asm\n"+d.Signature+"\n```")
	}
	if d.Description != "" {
		sections = append(sections, d.Description)
	}
	if len(d.Examples) > 0 {
		sections = append(sections, "Examples:\n```asm\n"+strings.Join(d.Examples, "\n")+"\n```")
	}
	return strings.Join(sections, "\n\n")
}

func codeList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

// formsFor keeps the forms written for one of asms, plus forms with no
// assembler. When nothing matches every form is returned.
func formsFor(forms []schema.Form, asms []schema.Assembler) []schema.Form {
	var out []schema.Form
	for _, f := range forms {
		if f.Assembler == "" || containsAssembler(asms, f.Assembler) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return forms
	}
	return out
}

func containsAssembler(asms []schema.Assembler, a schema.Assembler) bool {
	for _, x := range asms {
		if x == a {
			return true
		}
	}
	return false
}
