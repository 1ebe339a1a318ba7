package query

import (
	"context"
	"slices"
	"sort"
	"strings"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/kb"
	"asmlsp/internal/schema"
	"asmlsp/internal/token"
)

// CompletionItem is one suggested name.
type CompletionItem struct {
	Label  string     `json:"label"`
	Kind   token.Kind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}

// Complete lists every instruction, register and directive name that starts
// with the partial word before the cursor, case-insensitively. Results are
// deduplicated by label and sorted; nothing is truncated.
func (e *Engine) Complete(ctx context.Context, req Request) ([]CompletionItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.KB == nil {
		return nil, asmerrors.ErrResolutionMiss
	}
	d := req.dialect()
	if !token.InCode(req.Line, req.Col, d) {
		return nil, asmerrors.ErrResolutionMiss
	}
	prefix := token.Prefix(req.Line, req.Col, d)

	key := completionKey{
		generation:  req.Generation,
		fingerprint: req.Config.Fingerprint,
		prefix:      strings.ToLower(prefix),
	}
	items, ok := e.completions.Get(key)
	if !ok {
		items = collectCompletions(req.KB, prefix, req.filter())
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.completions.Add(key, items)
	}
	if len(items) == 0 {
		return nil, asmerrors.ErrResolutionMiss
	}
	return slices.Clone(items), nil
}

func collectCompletions(base *kb.KnowledgeBase, prefix string, f kb.Filter) []CompletionItem {
	var items []CompletionItem
	seen := make(map[string]bool)
	add := func(item CompletionItem) {
		k := schema.Fold(item.Label)
		if seen[k] {
			return
		}
		seen[k] = true
		items = append(items, item)
	}

	for _, m := range base.InstructionsByPrefix(prefix, f) {
		add(CompletionItem{Label: m.Label, Kind: token.KindInstruction, Detail: instructionDetail(m.Hits)})
	}
	for _, m := range base.RegistersByPrefix(prefix, f) {
		add(CompletionItem{Label: m.Label, Kind: token.KindRegister, Detail: registerDetail(m.Hits)})
	}
	for _, m := range base.DirectivesByPrefix(prefix, f) {
		add(CompletionItem{Label: m.Label, Kind: token.KindDirective, Detail: directiveDetail(m.Hits)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		li, lj := strings.ToLower(items[i].Label), strings.ToLower(items[j].Label)
		if li != lj {
			return li < lj
		}
		return items[i].Label < items[j].Label
	})
	return items
}

func instructionDetail(hits []kb.InstructionHit) string {
	tags := make([]string, 0, len(hits))
	for _, h := range hits {
		tags = appendTag(tags, string(h.Arch))
	}
	detail := strings.Join(tags, ", ")
	for _, h := range hits {
		if h.Instruction.Summary != "" {
			return detail + ": " + h.Instruction.Summary
		}
	}
	return detail
}

func registerDetail(hits []kb.RegisterHit) string {
	tags := make([]string, 0, len(hits))
	for _, h := range hits {
		tags = appendTag(tags, string(h.Arch))
	}
	return strings.Join(tags, ", ") + " " + string(hits[0].Register.Class) + " register"
}

func directiveDetail(hits []kb.DirectiveHit) string {
	tags := make([]string, 0, len(hits))
	for _, h := range hits {
		tags = appendTag(tags, string(h.Assembler))
	}
	return strings.Join(tags, ", ") + " directive"
}

func appendTag(tags []string, tag string) []string {
	if slices.Contains(tags, tag) {
		return tags
	}
	return append(tags, tag)
}
