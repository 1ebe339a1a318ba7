package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Assembler is a concrete assembler program's accepted syntax.
type Assembler string

const (
	AsmAVR  Assembler = "avr"
	AsmCA65 Assembler = "ca65"
	AsmFASM Assembler = "fasm"
	AsmGAS  Assembler = "gas"
	AsmGo   Assembler = "go"
	AsmMARS Assembler = "mars"
	AsmMASM Assembler = "masm"
	AsmNASM Assembler = "nasm"
)

// Assemblers lists every assembler in canonical order.
var Assemblers = []Assembler{AsmAVR, AsmCA65, AsmFASM, AsmGAS, AsmGo, AsmMARS, AsmMASM, AsmNASM}

var asmOrder = func() map[Assembler]int {
	m := make(map[Assembler]int, len(Assemblers))
	for i, a := range Assemblers {
		m[a] = i
	}
	return m
}()

// ParseAssembler parses an assembler name case-insensitively.
func ParseAssembler(s string) (Assembler, error) {
	a := Assembler(strings.ToLower(strings.TrimSpace(s)))
	if a == "gnu" || a == "as" {
		a = AsmGAS
	}
	if _, ok := asmOrder[a]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown assembler %q", s)
}

// Valid reports whether a is a known assembler.
func (a Assembler) Valid() bool {
	_, ok := asmOrder[a]
	return ok
}

// Order returns a's position in the canonical enumeration.
func (a Assembler) Order() int {
	if i, ok := asmOrder[a]; ok {
		return i
	}
	return len(Assemblers)
}

func (a Assembler) String() string { return string(a) }

// SortAssemblers sorts asms into canonical order in place.
func SortAssemblers(asms []Assembler) {
	sort.SliceStable(asms, func(i, j int) bool {
		return asms[i].Order() < asms[j].Order()
	})
}

// UniqueAssemblers removes duplicates and returns canonical order.
func UniqueAssemblers(in []Assembler) []Assembler {
	seen := make(map[Assembler]bool)
	var out []Assembler
	for _, a := range in {
		if a.Valid() && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	SortAssemblers(out)
	return out
}
