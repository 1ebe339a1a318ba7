package schema

import (
	"fmt"
	"strings"
)

// DocKind identifies which namespace a record belongs to.
type DocKind string

const (
	KindInstruction DocKind = "instruction"
	KindRegister    DocKind = "register"
	KindDirective   DocKind = "directive"
)

// DocKinds lists every document kind in canonical order.
var DocKinds = []DocKind{KindInstruction, KindRegister, KindDirective}

// ParseDocKind parses a document kind, accepting plural forms.
func ParseDocKind(s string) (DocKind, error) {
	k := DocKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch k {
	case KindInstruction, KindRegister, KindDirective:
		return k, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Form is one operand-syntax spelling of an instruction for an assembler
// dialect. Assembler may be empty when the source did not say.
type Form struct {
	Assembler Assembler `json:"assembler,omitempty"`
	Syntax    string    `json:"syntax"`
}

// Instruction is the canonical record for one mnemonic.
type Instruction struct {
	Name        string         `json:"name"`
	Aliases     []string       `json:"aliases,omitempty"`
	Arches      []Architecture `json:"arches"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Forms       []Form         `json:"forms,omitempty"`
	Flags       string         `json:"flags,omitempty"`
	URL         string         `json:"url,omitempty"`
}

// Names returns the display name followed by every alias.
func (i *Instruction) Names() []string {
	return append([]string{i.Name}, i.Aliases...)
}

// Empty reports whether the record carries no documentation beyond its name.
func (i *Instruction) Empty() bool {
	return i.Summary == "" && i.Description == "" && len(i.Forms) == 0 && i.Flags == "" && i.URL == ""
}

// RegisterClass tags the role of a register.
type RegisterClass string

const (
	ClassGeneralPurpose RegisterClass = "general-purpose"
	ClassSpecialPurpose RegisterClass = "special-purpose"
	ClassSaved          RegisterClass = "saved"
	ClassTemporary      RegisterClass = "temporary"
	ClassZero           RegisterClass = "zero"
	ClassStackPointer   RegisterClass = "stack-pointer"
	ClassFramePointer   RegisterClass = "frame-pointer"
	ClassReturnAddress  RegisterClass = "return-address"
	ClassArgument       RegisterClass = "argument"
	ClassReturnValue    RegisterClass = "return-value"
	ClassFlags          RegisterClass = "flags"
	ClassSegment        RegisterClass = "segment"
	ClassFloatingPoint  RegisterClass = "floating-point"
	ClassVector         RegisterClass = "vector"
	ClassControl        RegisterClass = "control"
	ClassOther          RegisterClass = "other"
)

var registerClasses = map[string]RegisterClass{
	"general-purpose": ClassGeneralPurpose,
	"general purpose": ClassGeneralPurpose,
	"gp":              ClassGeneralPurpose,
	"gpr":             ClassGeneralPurpose,
	"special-purpose": ClassSpecialPurpose,
	"special purpose": ClassSpecialPurpose,
	"special":         ClassSpecialPurpose,
	"saved":           ClassSaved,
	"callee-saved":    ClassSaved,
	"temporary":       ClassTemporary,
	"temp":            ClassTemporary,
	"caller-saved":    ClassTemporary,
	"zero":            ClassZero,
	"stack-pointer":   ClassStackPointer,
	"stack pointer":   ClassStackPointer,
	"sp":              ClassStackPointer,
	"frame-pointer":   ClassFramePointer,
	"frame pointer":   ClassFramePointer,
	"fp":              ClassFramePointer,
	"return-address":  ClassReturnAddress,
	"return address":  ClassReturnAddress,
	"argument":        ClassArgument,
	"return-value":    ClassReturnValue,
	"return value":    ClassReturnValue,
	"flags":           ClassFlags,
	"status":          ClassFlags,
	"segment":         ClassSegment,
	"floating-point":  ClassFloatingPoint,
	"floating point":  ClassFloatingPoint,
	"fpu":             ClassFloatingPoint,
	"vector":          ClassVector,
	"simd":            ClassVector,
	"control":         ClassControl,
	"other":           ClassOther,
}

// ParseRegisterClass maps a raw class label onto a RegisterClass. Unknown or
// empty labels map to ClassOther. Labels ending in " register" are accepted.
func ParseRegisterClass(s string) RegisterClass {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " register")
	s = strings.TrimSuffix(s, " registers")
	if c, ok := registerClasses[s]; ok {
		return c
	}
	return ClassOther
}

// Register is the canonical record for one physical register of one
// architecture. Aliases always contains Name.
type Register struct {
	Name        string        `json:"name"`
	Aliases     []string      `json:"aliases"`
	Arch        Architecture  `json:"arch"`
	Class       RegisterClass `json:"class"`
	Width       int           `json:"width,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Directive is the canonical record for one assembler directive.
type Directive struct {
	Name        string    `json:"name"`
	Assembler   Assembler `json:"assembler"`
	Description string    `json:"description,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Examples    []string  `json:"examples,omitempty"`
}

// Records is the shape every extractor emits.
type Records struct {
	Instructions []*Instruction
	Registers    []*Register
	Directives   []*Directive
}

// Len returns the total number of records.
func (r *Records) Len() int {
	return len(r.Instructions) + len(r.Registers) + len(r.Directives)
}

// Append adds all of other's records to r.
func (r *Records) Append(other Records) {
	r.Instructions = append(r.Instructions, other.Instructions...)
	r.Registers = append(r.Registers, other.Registers...)
	r.Directives = append(r.Directives, other.Directives...)
}

// Fold is the case-folding used for every name comparison.
func Fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
