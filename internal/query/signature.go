package query

import (
	"context"
	"strings"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
	"asmlsp/internal/token"
)

// Signature is one operand form of an instruction.
type Signature struct {
	Label         string   `json:"label"`
	Documentation string   `json:"documentation,omitempty"`
	Parameters    []string `json:"parameters"`
}

// SignatureHelp lists the forms of the instruction being written.
type SignatureHelp struct {
	Signatures      []Signature `json:"signatures"`
	ActiveSignature int         `json:"activeSignature"`
	ActiveParameter int         `json:"activeParameter"`
}

// SignatureHelp returns the operand forms of the line's mnemonic with the
// operand under the cursor marked active. The active signature is the first
// form with enough operands. It returns ErrResolutionMiss when the mnemonic
// is not a known instruction or has no forms.
func (e *Engine) SignatureHelp(ctx context.Context, req Request) (*SignatureHelp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.KB == nil {
		return nil, asmerrors.ErrResolutionMiss
	}
	d := req.dialect()
	mnemonic, ok := token.Statement(req.Line, d)
	if !ok || !mnemonic.Is(token.KindInstruction) {
		return nil, asmerrors.ErrResolutionMiss
	}
	active, ok := token.ActiveOperand(req.Line, req.Col, d)
	if !ok {
		return nil, asmerrors.ErrResolutionMiss
	}
	hits := req.KB.Instructions(mnemonic.Text, req.filter())

	var help SignatureHelp
	seen := make(map[string]bool)
	for _, h := range hits {
		for _, f := range formsFor(h.Instruction.Forms, req.Config.Assemblers) {
			if seen[f.Syntax] {
				continue
			}
			seen[f.Syntax] = true
			help.Signatures = append(help.Signatures, Signature{
				Label:         f.Syntax,
				Documentation: signatureDoc(h.Instruction, f),
				Parameters:    Operands(f.Syntax),
			})
		}
	}
	if len(help.Signatures) == 0 {
		return nil, asmerrors.ErrResolutionMiss
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	help.ActiveParameter = active
	for i, s := range help.Signatures {
		if len(s.Parameters) > active {
			help.ActiveSignature = i
			break
		}
	}
	return &help, nil
}

func signatureDoc(in *schema.Instruction, f schema.Form) string {
	doc := in.Summary
	if f.Assembler != "" {
		if doc != "" {
			doc += " "
		}
		doc += "(" + string(f.Assembler) + ")"
	}
	return doc
}

// Operands splits the operand list of a form's syntax on top-level commas.
// The mnemonic, the text before the first blank, is dropped.
func Operands(syntax string) []string {
	syntax = strings.TrimSpace(syntax)
	i := strings.IndexAny(syntax, " \t")
	if i < 0 {
		return nil
	}
	rest := strings.TrimSpace(syntax[i:])
	if rest == "" {
		return nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for j := 0; j < len(rest); j++ {
		switch rest[j] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(rest[start:j]))
				start = j + 1
			}
		}
	}
	return append(out, strings.TrimSpace(rest[start:]))
}
