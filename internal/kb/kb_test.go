package kb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

func writeStore(t *testing.T, st storage.Store, key schema.StoreKey, recs schema.Records) {
	t.Helper()
	require.NoError(t, st.Write(context.Background(), storage.NewPayload(key, recs)))
}

func adc(arch ...schema.Architecture) *schema.Instruction {
	return &schema.Instruction{Name: "ADC", Aliases: []string{"adcq"}, Arches: arch, Summary: "Add with Carry"}
}

// fixtureStore writes a small multi-architecture store set.
func fixtureStore(t *testing.T) *storage.FileStore {
	t.Helper()
	st := storage.NewFileStore(t.TempDir(), zap.NewNop())

	x86adc := adc(schema.X86, schema.X86_64)
	writeStore(t, st, schema.ArchKey(schema.KindInstruction, schema.X86), schema.Records{
		Instructions: []*schema.Instruction{x86adc, {Name: "MOV", Arches: []schema.Architecture{schema.X86, schema.X86_64}}},
	})
	writeStore(t, st, schema.ArchKey(schema.KindInstruction, schema.X86_64), schema.Records{
		Instructions: []*schema.Instruction{x86adc, {Name: "SYSCALL", Arches: []schema.Architecture{schema.X86_64}}},
	})
	writeStore(t, st, schema.ArchKey(schema.KindInstruction, schema.ARM), schema.Records{
		Instructions: []*schema.Instruction{{Name: "ADC", Arches: []schema.Architecture{schema.ARM}, Summary: "Add with Carry (ARM)"}},
	})
	writeStore(t, st, schema.ArchKey(schema.KindRegister, schema.MIPS), schema.Records{
		Registers: []*schema.Register{
			{Name: "$v0", Aliases: []string{"$v0", "$2"}, Arch: schema.MIPS, Class: schema.ClassReturnValue},
			{Name: "$zero", Aliases: []string{"$zero", "$0"}, Arch: schema.MIPS, Class: schema.ClassZero},
		},
	})
	writeStore(t, st, schema.ArchKey(schema.KindRegister, schema.X86_64), schema.Records{
		Registers: []*schema.Register{
			{Name: "rax", Aliases: []string{"rax"}, Arch: schema.X86_64, Width: 64},
			{Name: "eax", Aliases: []string{"eax"}, Arch: schema.X86_64, Width: 32},
		},
	})
	writeStore(t, st, schema.AsmKey(schema.AsmGAS), schema.Records{
		Directives: []*schema.Directive{
			{Name: ".global", Assembler: schema.AsmGAS},
			{Name: ".globl", Assembler: schema.AsmGAS},
		},
	})
	writeStore(t, st, schema.AsmKey(schema.AsmNASM), schema.Records{
		Directives: []*schema.Directive{{Name: "global", Assembler: schema.AsmNASM}},
	})
	return st
}

func openSelection() Selection {
	return Selection{Arches: schema.Architectures, Assemblers: schema.Assemblers}
}

func TestSelectionKeys(t *testing.T) {
	keys := Selection{
		Arches:     []schema.Architecture{schema.MIPS, schema.X86AndX86_64},
		Assemblers: []schema.Assembler{schema.AsmNASM, schema.AsmGAS},
	}.Keys()

	var got []string
	for _, k := range keys {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{
		"instruction/x86", "instruction/x86-64", "instruction/mips",
		"register/x86", "register/x86-64", "register/mips",
		"directive/gas", "directive/nasm",
	}, got)
}

func TestAmbiguousMnemonicOrder(t *testing.T) {
	kb, err := Load(context.Background(), fixtureStore(t), openSelection(), zap.NewNop())
	require.NoError(t, err)

	hits := kb.Instructions("adc", Filter{})
	require.Len(t, hits, 3)
	assert.Equal(t, schema.X86, hits[0].Arch)
	assert.Equal(t, schema.X86_64, hits[1].Arch)
	assert.Equal(t, schema.ARM, hits[2].Arch)

	// Alias reaches the same records.
	assert.Len(t, kb.Instructions("ADCQ", Filter{}), 2)

	only := kb.Instructions("ADC", Filter{Arches: schema.NewArchSet(schema.ARM)})
	require.Len(t, only, 1)
	assert.Equal(t, "Add with Carry (ARM)", only[0].Instruction.Summary)

	assert.Empty(t, kb.Instructions("adc", Filter{Arches: schema.NewArchSet(schema.Z80)}))
}

func TestCompositeSelection(t *testing.T) {
	kb, err := Load(context.Background(), fixtureStore(t),
		Selection{Arches: []schema.Architecture{schema.X86AndX86_64}}, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, kb.Instructions("adc", Filter{}), 2)
	assert.Len(t, kb.Instructions("syscall", Filter{}), 1)
	assert.Empty(t, kb.Registers("$v0", Filter{}), "mips not selected")
	assert.Empty(t, kb.Directives(".global", Filter{}), "no assemblers selected")
}

func TestRegisterAliasSymmetry(t *testing.T) {
	st := fixtureStore(t)
	kb, err := Load(context.Background(), st, openSelection(), zap.NewNop())
	require.NoError(t, err)

	p, err := st.Read(context.Background(), schema.ArchKey(schema.KindRegister, schema.MIPS))
	require.NoError(t, err)
	for _, reg := range p.Registers {
		for _, alias := range reg.Aliases {
			hits := kb.Registers(alias, Filter{})
			require.Len(t, hits, 1, alias)
			assert.Equal(t, reg.Name, hits[0].Register.Name, alias)
			assert.Equal(t, schema.MIPS, hits[0].Arch)
		}
	}
}

func TestRegisterSigilFallback(t *testing.T) {
	kb, err := Load(context.Background(), fixtureStore(t), openSelection(), zap.NewNop())
	require.NoError(t, err)

	hits := kb.Registers("%RAX", Filter{})
	require.Len(t, hits, 1)
	assert.Equal(t, "rax", hits[0].Register.Name)

	// A sigil that is part of the alias matches verbatim first.
	require.Len(t, kb.Registers("$2", Filter{}), 1)
	assert.Empty(t, kb.Registers("%v0", Filter{}))
}

func TestDirectiveDotFallback(t *testing.T) {
	kb, err := Load(context.Background(), fixtureStore(t), openSelection(), zap.NewNop())
	require.NoError(t, err)

	hits := kb.Directives("global", Filter{})
	require.Len(t, hits, 1)
	assert.Equal(t, schema.AsmNASM, hits[0].Assembler)

	hits = kb.Directives("global", Filter{Assemblers: []schema.Assembler{schema.AsmGAS}})
	require.Len(t, hits, 1)
	assert.Equal(t, ".global", hits[0].Directive.Name)
}

func TestPrefixScan(t *testing.T) {
	kb, err := Load(context.Background(), fixtureStore(t), openSelection(), zap.NewNop())
	require.NoError(t, err)

	var labels []string
	for _, m := range kb.DirectivesByPrefix("glo", Filter{}) {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"global", ".global", ".globl"}, labels)

	labels = nil
	for _, m := range kb.RegistersByPrefix("%ea", Filter{}) {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"eax"}, labels)

	labels = nil
	for _, m := range kb.InstructionsByPrefix("a", Filter{}) {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"ADC", "adcq"}, labels)
}

func TestDeterministicLoad(t *testing.T) {
	st := fixtureStore(t)
	a, err := Load(context.Background(), st, openSelection(), zap.NewNop())
	require.NoError(t, err)
	b, err := Load(context.Background(), st, openSelection(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, a.instructions.keys, b.instructions.keys)
	for _, k := range a.instructions.keys {
		ha, hb := a.instructions.hits[k], b.instructions.hits[k]
		require.Len(t, hb, len(ha))
		for i := range ha {
			assert.Equal(t, ha[i].Arch, hb[i].Arch)
			assert.Equal(t, ha[i].Instruction.Name, hb[i].Instruction.Name)
		}
	}
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestAliasCollisionDropped(t *testing.T) {
	st := storage.NewFileStore(t.TempDir(), zap.NewNop())
	writeStore(t, st, schema.ArchKey(schema.KindRegister, schema.ARM), schema.Records{
		Registers: []*schema.Register{
			{Name: "r13", Aliases: []string{"r13", "sp"}, Arch: schema.ARM},
			{Name: "sp", Aliases: []string{"sp", "stack"}, Arch: schema.ARM},
		},
	})
	kb, err := Load(context.Background(), st, Selection{Arches: []schema.Architecture{schema.ARM}}, zap.NewNop())
	require.NoError(t, err)

	hits := kb.Registers("sp", Filter{})
	require.Len(t, hits, 1)
	assert.Equal(t, "r13", hits[0].Register.Name)
	assert.Equal(t, 1, kb.Stats().DroppedAliases)
	require.Len(t, kb.Registers("stack", Filter{}), 1)
}

func corrupt(t *testing.T, st *storage.FileStore, key schema.StoreKey) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), key.FileName()), []byte("garbage"), 0o644))
}

func TestDegradedKind(t *testing.T) {
	st := fixtureStore(t)
	corrupt(t, st, schema.ArchKey(schema.KindRegister, schema.MIPS))

	kb, err := Load(context.Background(), st, openSelection(), zap.NewNop())
	require.NoError(t, err)

	require.Contains(t, kb.Degraded, schema.KindRegister)
	assert.True(t, asmerrors.IsCode(kb.Degraded[schema.KindRegister], asmerrors.StoreError))
	assert.Empty(t, kb.Registers("rax", Filter{}), "whole kind is empty")
	assert.NotEmpty(t, kb.Instructions("mov", Filter{}))
	assert.NotEmpty(t, kb.Directives(".global", Filter{}))
}

func TestAllKindsDegradedIsFatal(t *testing.T) {
	st := fixtureStore(t)
	corrupt(t, st, schema.ArchKey(schema.KindInstruction, schema.X86))
	corrupt(t, st, schema.ArchKey(schema.KindRegister, schema.MIPS))
	corrupt(t, st, schema.AsmKey(schema.AsmGAS))

	_, err := Load(context.Background(), st, openSelection(), zap.NewNop())
	require.Error(t, err)
	assert.True(t, asmerrors.IsCode(err, asmerrors.StoreError))
}

func TestMissingStoresAreNotErrors(t *testing.T) {
	kb, err := Load(context.Background(), storage.NewFileStore(t.TempDir(), zap.NewNop()), openSelection(), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, kb.Degraded)
	assert.Equal(t, 0, kb.Stats().Stores)
	assert.Equal(t, len(openSelection().Keys()), kb.Stats().Missing)
}

func TestEmpty(t *testing.T) {
	kb := Empty()
	assert.Empty(t, kb.Instructions("mov", Filter{}))
	assert.Empty(t, kb.InstructionsByPrefix("", Filter{}))
}
