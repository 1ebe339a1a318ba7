// Package schema defines the canonical, architecture- and assembler-tagged
// documentation records shared by the normalizer, the stores and the
// knowledge base.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Architecture is an instruction-set target.
type Architecture string

const (
	X86      Architecture = "x86"
	X86_64   Architecture = "x86-64"
	ARM      Architecture = "arm"
	ARM64    Architecture = "arm64"
	RISCV    Architecture = "riscv"
	Z80      Architecture = "z80"
	MOS6502  Architecture = "6502"
	PowerISA Architecture = "power-isa"
	AVR      Architecture = "avr"
	MIPS     Architecture = "mips"

	// X86AndX86_64 is the composite tag meaning "applies to both".
	X86AndX86_64 Architecture = "x86/x86-64"
)

// Architectures lists every concrete architecture in canonical order. Index
// construction and hover grouping follow this order.
var Architectures = []Architecture{X86, X86_64, ARM, ARM64, RISCV, Z80, MOS6502, PowerISA, AVR, MIPS}

var archOrder = func() map[Architecture]int {
	m := make(map[Architecture]int, len(Architectures))
	for i, a := range Architectures {
		m[a] = i
	}
	return m
}()

var archAliases = map[string]Architecture{
	"x86":        X86,
	"i386":       X86,
	"ia32":       X86,
	"x86-64":     X86_64,
	"x86_64":     X86_64,
	"amd64":      X86_64,
	"x64":        X86_64,
	"arm":        ARM,
	"arm32":      ARM,
	"arm64":      ARM64,
	"aarch64":    ARM64,
	"riscv":      RISCV,
	"risc-v":     RISCV,
	"z80":        Z80,
	"6502":       MOS6502,
	"mos6502":    MOS6502,
	"power-isa":  PowerISA,
	"powerisa":   PowerISA,
	"powerpc":    PowerISA,
	"ppc":        PowerISA,
	"avr":        AVR,
	"mips":       MIPS,
	"x86/x86-64": X86AndX86_64,
	"x86/x86_64": X86AndX86_64,
}

// ParseArchitecture parses a canonical architecture name or one of its common
// spellings, case-insensitively.
func ParseArchitecture(s string) (Architecture, error) {
	if a, ok := archAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown architecture %q", s)
}

// IsComposite reports whether a names more than one concrete architecture.
func (a Architecture) IsComposite() bool {
	return a == X86AndX86_64
}

// Valid reports whether a is a known concrete or composite architecture.
func (a Architecture) Valid() bool {
	_, ok := archOrder[a]
	return ok || a.IsComposite()
}

// Expand returns the concrete member architectures of a.
func (a Architecture) Expand() []Architecture {
	if a.IsComposite() {
		return []Architecture{X86, X86_64}
	}
	if _, ok := archOrder[a]; ok {
		return []Architecture{a}
	}
	return nil
}

// Order returns a's position in the canonical enumeration, or len(Architectures)
// for unknown values.
func (a Architecture) Order() int {
	if i, ok := archOrder[a]; ok {
		return i
	}
	return len(Architectures)
}

func (a Architecture) String() string { return string(a) }

// ExpandAll expands every architecture in in, removes duplicates and returns
// the result in canonical order.
func ExpandAll(in []Architecture) []Architecture {
	seen := make(map[Architecture]bool)
	var out []Architecture
	for _, a := range in {
		for _, m := range a.Expand() {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	SortArchitectures(out)
	return out
}

// SortArchitectures sorts archs into canonical order in place.
func SortArchitectures(archs []Architecture) {
	sort.SliceStable(archs, func(i, j int) bool {
		return archs[i].Order() < archs[j].Order()
	})
}

// ArchSet is a small set of concrete architectures.
type ArchSet map[Architecture]bool

// NewArchSet builds a set from archs, expanding composites.
func NewArchSet(archs ...Architecture) ArchSet {
	s := make(ArchSet)
	for _, a := range ExpandAll(archs) {
		s[a] = true
	}
	return s
}

// Has reports whether a (or every member of a composite) is in the set.
func (s ArchSet) Has(a Architecture) bool {
	members := a.Expand()
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !s[m] {
			return false
		}
	}
	return true
}

// Sorted returns the set's members in canonical order.
func (s ArchSet) Sorted() []Architecture {
	out := make([]Architecture, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	SortArchitectures(out)
	return out
}
