// Package kb holds the in-memory knowledge base: case-insensitive name
// indices over the instruction, register and directive stores selected by
// the active configuration.
package kb

import (
	"strings"

	"asmlsp/internal/schema"
)

// InstructionHit is one instruction record reachable under a name, tagged
// with the architecture store it was loaded from.
type InstructionHit struct {
	Arch        schema.Architecture
	Instruction *schema.Instruction
}

// RegisterHit is one register record reachable under an alias.
type RegisterHit struct {
	Arch     schema.Architecture
	Register *schema.Register
}

// DirectiveHit is one directive record reachable under a name.
type DirectiveHit struct {
	Assembler schema.Assembler
	Directive *schema.Directive
}

// Filter restricts lookups to the effective architectures and assemblers.
// A nil field does not filter.
type Filter struct {
	Arches     schema.ArchSet
	Assemblers []schema.Assembler
}

func (f Filter) hasArch(a schema.Architecture) bool {
	return f.Arches == nil || f.Arches.Has(a)
}

func (f Filter) hasAssembler(a schema.Assembler) bool {
	if f.Assemblers == nil {
		return true
	}
	for _, x := range f.Assemblers {
		if x == a {
			return true
		}
	}
	return false
}

// registerSigils are stripped when a verbatim register lookup misses.
const registerSigils = "%$"

// KnowledgeBase is immutable once loaded and safe for concurrent readers.
type KnowledgeBase struct {
	instructions *index[InstructionHit]
	registers    *index[RegisterHit]
	directives   *index[DirectiveHit]

	// Degraded records the kinds that failed to load and why. Their indices
	// are empty.
	Degraded map[schema.DocKind]error

	stats Stats
}

// Empty returns a knowledge base with no records.
func Empty() *KnowledgeBase {
	kb := &KnowledgeBase{
		instructions: newIndex[InstructionHit](),
		registers:    newIndex[RegisterHit](),
		directives:   newIndex[DirectiveHit](),
		Degraded:     make(map[schema.DocKind]error),
	}
	kb.seal()
	return kb
}

func (kb *KnowledgeBase) seal() {
	kb.instructions.seal()
	kb.registers.seal()
	kb.directives.seal()
	kb.stats.InstructionNames = kb.instructions.len()
	kb.stats.RegisterNames = kb.registers.len()
	kb.stats.DirectiveNames = kb.directives.len()
}

// Instructions returns the instructions named name (or aliased as name) on
// the filtered architectures, in architecture order.
func (kb *KnowledgeBase) Instructions(name string, f Filter) []InstructionHit {
	return filterInstructions(kb.instructions.get(name), f)
}

// Registers returns the registers aliased as name. When the verbatim text
// misses, the text with its sigil stripped is tried.
func (kb *KnowledgeBase) Registers(name string, f Filter) []RegisterHit {
	if hits := filterRegisters(kb.registers.get(name), f); len(hits) > 0 {
		return hits
	}
	if stripped := strings.TrimLeft(name, registerSigils); stripped != name {
		return filterRegisters(kb.registers.get(stripped), f)
	}
	return nil
}

// Directives returns the directives named name. A name without its leading
// dot also matches.
func (kb *KnowledgeBase) Directives(name string, f Filter) []DirectiveHit {
	if hits := filterDirectives(kb.directives.get(name), f); len(hits) > 0 {
		return hits
	}
	if !strings.HasPrefix(name, ".") {
		return filterDirectives(kb.directives.get("."+name), f)
	}
	return nil
}

// InstructionMatch is one name found by a prefix scan.
type InstructionMatch struct {
	Label string
	Hits  []InstructionHit
}

// RegisterMatch is one alias found by a prefix scan.
type RegisterMatch struct {
	Label string
	Hits  []RegisterHit
}

// DirectiveMatch is one directive name found by a prefix scan.
type DirectiveMatch struct {
	Label string
	Hits  []DirectiveHit
}

// InstructionsByPrefix returns every instruction name or alias starting with
// prefix, in lexical order.
func (kb *KnowledgeBase) InstructionsByPrefix(prefix string, f Filter) []InstructionMatch {
	var out []InstructionMatch
	kb.instructions.scan(prefix, func(label string, hits []InstructionHit) {
		if hits = filterInstructions(hits, f); len(hits) > 0 {
			out = append(out, InstructionMatch{Label: label, Hits: hits})
		}
	})
	return out
}

// RegistersByPrefix returns every register alias starting with prefix. A
// sigil-prefixed prefix also matches bare aliases.
func (kb *KnowledgeBase) RegistersByPrefix(prefix string, f Filter) []RegisterMatch {
	var out []RegisterMatch
	seen := make(map[string]bool)
	collect := func(p string) {
		kb.registers.scan(p, func(label string, hits []RegisterHit) {
			if seen[label] {
				return
			}
			if hits = filterRegisters(hits, f); len(hits) > 0 {
				seen[label] = true
				out = append(out, RegisterMatch{Label: label, Hits: hits})
			}
		})
	}
	collect(prefix)
	if stripped := strings.TrimLeft(prefix, registerSigils); stripped != prefix {
		collect(stripped)
	}
	return out
}

// DirectivesByPrefix returns every directive name starting with prefix, or
// with "." followed by prefix.
func (kb *KnowledgeBase) DirectivesByPrefix(prefix string, f Filter) []DirectiveMatch {
	var out []DirectiveMatch
	seen := make(map[string]bool)
	collect := func(p string) {
		kb.directives.scan(p, func(label string, hits []DirectiveHit) {
			if seen[label] {
				return
			}
			if hits = filterDirectives(hits, f); len(hits) > 0 {
				seen[label] = true
				out = append(out, DirectiveMatch{Label: label, Hits: hits})
			}
		})
	}
	collect(prefix)
	if !strings.HasPrefix(prefix, ".") {
		collect("." + prefix)
	}
	return out
}

// Stats returns record and name counts.
func (kb *KnowledgeBase) Stats() Stats {
	return kb.stats
}

func filterInstructions(hits []InstructionHit, f Filter) []InstructionHit {
	var out []InstructionHit
	for _, h := range hits {
		if f.hasArch(h.Arch) {
			out = append(out, h)
		}
	}
	return out
}

func filterRegisters(hits []RegisterHit, f Filter) []RegisterHit {
	var out []RegisterHit
	for _, h := range hits {
		if f.hasArch(h.Arch) {
			out = append(out, h)
		}
	}
	return out
}

func filterDirectives(hits []DirectiveHit, f Filter) []DirectiveHit {
	var out []DirectiveHit
	for _, h := range hits {
		if f.hasAssembler(h.Assembler) {
			out = append(out, h)
		}
	}
	return out
}
