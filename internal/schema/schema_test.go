package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchitecture(t *testing.T) {
	tests := []struct {
		in      string
		want    Architecture
		wantErr bool
	}{
		{"x86", X86, false},
		{"X86_64", X86_64, false},
		{"aarch64", ARM64, false},
		{"RISC-V", RISCV, false},
		{"x86/x86-64", X86AndX86_64, false},
		{"6502", MOS6502, false},
		{"power-isa", PowerISA, false},
		{"sparc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseArchitecture(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand(t *testing.T) {
	assert.Equal(t, []Architecture{X86, X86_64}, X86AndX86_64.Expand())
	assert.Equal(t, []Architecture{MIPS}, MIPS.Expand())
	assert.Nil(t, Architecture("vax").Expand())

	got := ExpandAll([]Architecture{MIPS, X86AndX86_64, X86, ARM})
	assert.Equal(t, []Architecture{X86, X86_64, ARM, MIPS}, got)
}

func TestArchSet(t *testing.T) {
	s := NewArchSet(X86AndX86_64)

	assert.True(t, s.Has(X86))
	assert.True(t, s.Has(X86_64))
	assert.True(t, s.Has(X86AndX86_64))
	assert.False(t, s.Has(ARM))
	assert.Equal(t, []Architecture{X86, X86_64}, s.Sorted())

	partial := NewArchSet(X86)
	assert.False(t, partial.Has(X86AndX86_64), "composite needs every member")
}

func TestParseAssembler(t *testing.T) {
	a, err := ParseAssembler("NASM")
	require.NoError(t, err)
	assert.Equal(t, AsmNASM, a)

	a, err = ParseAssembler("gnu")
	require.NoError(t, err)
	assert.Equal(t, AsmGAS, a)

	_, err = ParseAssembler("tasm")
	assert.Error(t, err)

	assert.Equal(t, []Assembler{AsmCA65, AsmGAS, AsmNASM},
		UniqueAssemblers([]Assembler{AsmNASM, AsmGAS, AsmCA65, AsmGAS, "bogus"}))
}

func TestParseDocKind(t *testing.T) {
	k, err := ParseDocKind("Registers")
	require.NoError(t, err)
	assert.Equal(t, KindRegister, k)

	_, err = ParseDocKind("macro")
	assert.Error(t, err)
}

func TestParseRegisterClass(t *testing.T) {
	assert.Equal(t, ClassGeneralPurpose, ParseRegisterClass("General Purpose Register"))
	assert.Equal(t, ClassStackPointer, ParseRegisterClass("sp"))
	assert.Equal(t, ClassOther, ParseRegisterClass(""))
	assert.Equal(t, ClassOther, ParseRegisterClass("mystery"))
}

func TestStoreKey(t *testing.T) {
	k := ArchKey(KindInstruction, X86_64)
	assert.Equal(t, "instruction.x86-64.kb.zst", k.FileName())
	assert.NoError(t, k.Validate())

	back, ok := ParseFileName(k.FileName())
	require.True(t, ok)
	assert.Equal(t, k, back)

	assert.Error(t, ArchKey(KindRegister, X86AndX86_64).Validate())
	assert.Error(t, StoreKey{Kind: KindDirective, Key: "x86"}.Validate())

	_, ok = ParseFileName("notes.txt")
	assert.False(t, ok)

	assert.True(t, ArchKey(KindInstruction, MIPS).Less(ArchKey(KindRegister, X86)))
	assert.True(t, ArchKey(KindRegister, X86).Less(ArchKey(KindRegister, MIPS)))
	assert.True(t, AsmKey(AsmCA65).Less(AsmKey(AsmGAS)))
}
