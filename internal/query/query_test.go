package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"asmlsp/internal/config"
	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/kb"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

func loadFixture(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	ctx := context.Background()
	st := storage.NewFileStore(t.TempDir(), zap.NewNop())
	write := func(key schema.StoreKey, recs schema.Records) {
		require.NoError(t, st.Write(ctx, storage.NewPayload(key, recs)))
	}

	x86adc := func() *schema.Instruction {
		return &schema.Instruction{
			Name:    "ADC",
			Aliases: []string{"adcq"},
			Arches:  []schema.Architecture{schema.X86, schema.X86_64},
			Summary: "Add with Carry",
			Forms: []schema.Form{
				{Assembler: schema.AsmNASM, Syntax: "adc r/m32, r32"},
				{Assembler: schema.AsmGAS, Syntax: "adcl r32, r/m32"},
			},
			Flags: "OF SF ZF AF CF PF",
		}
	}
	write(schema.ArchKey(schema.KindInstruction, schema.X86), schema.Records{Instructions: []*schema.Instruction{x86adc()}})
	write(schema.ArchKey(schema.KindInstruction, schema.X86_64), schema.Records{Instructions: []*schema.Instruction{x86adc()}})
	write(schema.ArchKey(schema.KindInstruction, schema.ARM), schema.Records{Instructions: []*schema.Instruction{{
		Name:    "ADC",
		Arches:  []schema.Architecture{schema.ARM},
		Summary: "Add with Carry (ARM)",
		Forms:   []schema.Form{{Syntax: "ADC Rd, Rn, Op2"}},
	}}})
	write(schema.ArchKey(schema.KindInstruction, schema.MOS6502), schema.Records{Instructions: []*schema.Instruction{{
		Name:    "ADC",
		Arches:  []schema.Architecture{schema.MOS6502},
		Summary: "Add Memory to Accumulator with Carry",
		Forms:   []schema.Form{{Syntax: "ADC #oper"}, {Syntax: "ADC oper,X"}},
	}, {
		Name:   "NOP",
		Arches: []schema.Architecture{schema.MOS6502},
	}}})
	write(schema.ArchKey(schema.KindRegister, schema.MIPS), schema.Records{Registers: []*schema.Register{
		{Name: "$a0", Aliases: []string{"$a0", "$4"}, Arch: schema.MIPS, Class: schema.ClassArgument, Width: 32},
	}})
	write(schema.ArchKey(schema.KindRegister, schema.X86_64), schema.Records{Registers: []*schema.Register{
		{Name: "eax", Aliases: []string{"eax"}, Arch: schema.X86_64, Class: schema.ClassGeneralPurpose, Width: 32},
		{Name: "es", Aliases: []string{"es"}, Arch: schema.X86_64, Class: schema.ClassSegment, Width: 16},
		{Name: "fs", Aliases: []string{"fs"}, Arch: schema.X86_64, Class: schema.ClassSegment, Width: 16},
	}})
	write(schema.AsmKey(schema.AsmGAS), schema.Records{Directives: []*schema.Directive{
		{Name: ".global", Assembler: schema.AsmGAS, Signature: ".global symbol", Description: "Makes the symbol visible to ld."},
		{Name: ".globl", Assembler: schema.AsmGAS},
	}})
	write(schema.AsmKey(schema.AsmNASM), schema.Records{Directives: []*schema.Directive{
		{Name: "global", Assembler: schema.AsmNASM, Examples: []string{"global _start"}},
	}})

	base, err := kb.Load(ctx, st, kb.Selection{Arches: schema.Architectures, Assemblers: schema.Assemblers}, zap.NewNop())
	require.NoError(t, err)
	return base
}

func effective(arches []schema.Architecture, asms ...schema.Assembler) config.Effective {
	var fp []string
	for _, a := range arches {
		fp = append(fp, string(a))
	}
	for _, a := range asms {
		fp = append(fp, string(a))
	}
	return config.Effective{Arches: arches, Assemblers: asms, Fingerprint: strings.Join(fp, ",")}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(16, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestHoverAmbiguousMnemonic(t *testing.T) {
	e := newEngine(t)
	req := Request{
		Line:   "    adc r0, r1",
		Col:    5,
		Config: effective([]schema.Architecture{schema.X86, schema.ARM}, schema.AsmGAS),
		KB:     loadFixture(t),
	}
	h, err := e.Hover(context.Background(), req)
	require.NoError(t, err)

	x86 := strings.Index(h.Contents, "## ADC (x86)")
	arm := strings.Index(h.Contents, "## ADC (arm)")
	require.GreaterOrEqual(t, x86, 0, h.Contents)
	require.GreaterOrEqual(t, arm, 0, h.Contents)
	assert.Less(t, x86, arm)
	assert.NotContains(t, h.Contents, "x86-64")

	// Only the gas form survives the assembler filter.
	assert.Contains(t, h.Contents, "`adcl r32, r/m32` (gas)")
	assert.NotContains(t, h.Contents, "adc r/m32, r32")
	assert.Contains(t, h.Contents, "Add with Carry (ARM)")
	assert.Equal(t, "adc", h.Token.Text)
}

func TestHoverMergesIdenticalArches(t *testing.T) {
	e := newEngine(t)
	req := Request{
		Line:   "adc",
		Col:    0,
		Config: effective([]schema.Architecture{schema.X86, schema.X86_64, schema.ARM}, schema.AsmNASM),
		KB:     loadFixture(t),
	}
	h, err := e.Hover(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.Contents, "## ADC (x86, x86-64)"), h.Contents)
	assert.Equal(t, 2, strings.Count(h.Contents, "## ADC"))
	assert.Contains(t, h.Contents, "`adc r/m32, r32` (nasm)")
	assert.Contains(t, h.Contents, "Aliases: `adcq`")
}

func TestHoverRegister(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)

	h, err := e.Hover(context.Background(), Request{
		Line:   "    la $a0, out_string",
		Col:    8,
		Config: effective([]schema.Architecture{schema.MIPS}, schema.AsmMARS),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Contains(t, h.Contents, "## $a0 (mips)")
	assert.Contains(t, h.Contents, "Aliases: `$4`")
	assert.Contains(t, h.Contents, "Class: argument, width: 32 bits")

	h, err = e.Hover(context.Background(), Request{
		Line:   "  mov eax, 1",
		Col:    7,
		Config: effective([]schema.Architecture{schema.X86, schema.X86_64}, schema.AsmNASM),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Contains(t, h.Contents, "## eax (x86-64)")

	h, err = e.Hover(context.Background(), Request{
		Line:   "  movl %eax, %ebx",
		Col:    8,
		Config: effective([]schema.Architecture{schema.X86_64}, schema.AsmGAS),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Equal(t, "%eax", h.Token.Text)
	assert.Contains(t, h.Contents, "## eax (x86-64)")
}

func TestHoverSegmentOverride(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	x64 := []schema.Architecture{schema.X86_64}

	h, err := e.Hover(context.Background(), Request{
		Line:   "    movq %fs:0x28, %rax",
		Col:    10,
		Config: effective(x64, schema.AsmGAS),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Equal(t, "%fs", h.Token.Text)
	assert.Contains(t, h.Contents, "## fs (x86-64)")
	assert.Contains(t, h.Contents, "Class: segment")

	h, err = e.Hover(context.Background(), Request{
		Line:   "    mov ax, es:[bx]",
		Col:    13,
		Config: effective(x64, schema.AsmNASM),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Contains(t, h.Contents, "## es (x86-64)")

	_, err = e.Hover(context.Background(), Request{Line: "fs: nop", Col: 0, Config: effective(x64, schema.AsmNASM), KB: base})
	assert.True(t, asmerrors.IsMiss(err), "a label definition is not a register")
}

func TestHoverDirective(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	open := config.OpenDefault()

	h, err := e.Hover(context.Background(), Request{Line: "  .global main", Col: 3, Config: open, KB: base})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.Contents, "## .global (gas)"), h.Contents)
	assert.Contains(t, h.Contents, "```asm\n.global symbol\n```")
	assert.NotContains(t, h.Contents, "nasm")

	h, err = e.Hover(context.Background(), Request{
		Line:   "global _start",
		Col:    2,
		Config: effective([]schema.Architecture{schema.X86_64}, schema.AsmNASM),
		KB:     base,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.Contents, "## global (nasm)"), h.Contents)
	assert.Contains(t, h.Contents, "global _start")
}

func TestHoverMiss(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	open := config.OpenDefault()

	for _, line := range []string{"loop:", "    frobnicate", "   ", "  xyz ; adc"} {
		_, err := e.Hover(context.Background(), Request{Line: line, Col: 3, Config: open, KB: base})
		assert.True(t, asmerrors.IsMiss(err), "line %q: %v", line, err)
	}

	// ADC exists only on architectures the config does not enable.
	_, err := e.Hover(context.Background(), Request{
		Line:   "adc",
		Config: effective([]schema.Architecture{schema.MIPS}, schema.AsmMARS),
		KB:     base,
	})
	assert.True(t, asmerrors.IsMiss(err))

	_, err = e.Hover(context.Background(), Request{Line: "adc", Config: open})
	assert.True(t, asmerrors.IsMiss(err))
}

func TestCancelledRequest(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := Request{Line: "adc", Config: config.OpenDefault(), KB: loadFixture(t)}

	_, err := e.Hover(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.Complete(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.SignatureHelp(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func labels(items []CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	open := config.OpenDefault()

	items, err := e.Complete(context.Background(), Request{Line: "  ad", Col: 4, Config: open, KB: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADC", "adcq"}, labels(items))
	assert.Equal(t, "x86, x86-64, arm, 6502: Add with Carry", items[0].Detail)

	items, err = e.Complete(context.Background(), Request{Line: "  gl", Col: 4, Config: open, KB: base})
	require.NoError(t, err)
	assert.Equal(t, []string{".global", ".globl", "global"}, labels(items))
	assert.Equal(t, "nasm directive", items[2].Detail)

	items, err = e.Complete(context.Background(), Request{Line: "  .gl", Col: 5, Config: open, KB: base})
	require.NoError(t, err)
	assert.Equal(t, []string{".global", ".globl"}, labels(items))

	items, err = e.Complete(context.Background(), Request{
		Line:   "  movl %ea",
		Col:    10,
		Config: effective([]schema.Architecture{schema.X86_64}, schema.AsmGAS),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"eax"}, labels(items))
	assert.Equal(t, "x86-64 general-purpose register", items[0].Detail)
}

func TestCompleteFiltersAndMisses(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)

	items, err := e.Complete(context.Background(), Request{
		Line:   "ad",
		Col:    2,
		Config: effective([]schema.Architecture{schema.MOS6502}, schema.AsmCA65),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADC"}, labels(items))
	assert.Equal(t, "6502: Add Memory to Accumulator with Carry", items[0].Detail)

	_, err = e.Complete(context.Background(), Request{Line: "zz", Col: 2, Config: config.OpenDefault(), KB: base})
	assert.True(t, asmerrors.IsMiss(err))

	_, err = e.Complete(context.Background(), Request{Line: "nop ; ad", Col: 8, Config: effective(nil, schema.AsmNASM), KB: base})
	assert.True(t, asmerrors.IsMiss(err))
}

func TestCompletionCache(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	req := Request{Line: "AD", Col: 2, Config: config.OpenDefault(), KB: base, Generation: "g1"}

	first, err := e.Complete(context.Background(), req)
	require.NoError(t, err)
	first[0].Label = "mutated"

	req.Line = "ad"
	second, err := e.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ADC", second[0].Label)
	assert.Equal(t, 1, e.completions.Len())

	req.Generation = "g2"
	_, err = e.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, e.completions.Len())

	e.Purge()
	assert.Equal(t, 0, e.completions.Len())
}

func TestSignatureHelp(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	cfg := effective([]schema.Architecture{schema.MOS6502}, schema.AsmCA65)

	help, err := e.SignatureHelp(context.Background(), Request{Line: "ADC oper,X", Col: 9, Config: cfg, KB: base})
	require.NoError(t, err)
	require.Len(t, help.Signatures, 2)
	assert.Equal(t, 1, help.ActiveParameter)
	assert.Equal(t, 1, help.ActiveSignature)
	assert.Equal(t, []string{"oper", "X"}, help.Signatures[1].Parameters)

	help, err = e.SignatureHelp(context.Background(), Request{Line: "ADC oper,X", Col: 6, Config: cfg, KB: base})
	require.NoError(t, err)
	assert.Equal(t, 0, help.ActiveParameter)
	assert.Equal(t, 0, help.ActiveSignature)
	assert.Equal(t, "ADC #oper", help.Signatures[0].Label)
	assert.Equal(t, "Add Memory to Accumulator with Carry", help.Signatures[0].Documentation)

	help, err = e.SignatureHelp(context.Background(), Request{Line: "ADC oper,X", Col: 1, Config: cfg, KB: base})
	require.NoError(t, err)
	assert.Equal(t, 0, help.ActiveParameter)
}

func TestSignatureHelpAssemblerForms(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)

	help, err := e.SignatureHelp(context.Background(), Request{
		Line:   "  adc eax, ",
		Col:    11,
		Config: effective([]schema.Architecture{schema.X86}, schema.AsmNASM),
		KB:     base,
	})
	require.NoError(t, err)
	require.Len(t, help.Signatures, 1)
	assert.Equal(t, "adc r/m32, r32", help.Signatures[0].Label)
	assert.Equal(t, "Add with Carry (nasm)", help.Signatures[0].Documentation)
	assert.Equal(t, 1, help.ActiveParameter)

	// No form matches masm, so every form is offered.
	help, err = e.SignatureHelp(context.Background(), Request{
		Line:   "adc ",
		Col:    4,
		Config: effective([]schema.Architecture{schema.X86}, schema.AsmMASM),
		KB:     base,
	})
	require.NoError(t, err)
	assert.Len(t, help.Signatures, 2)
}

func TestSignatureHelpMiss(t *testing.T) {
	e := newEngine(t)
	base := loadFixture(t)
	cfg := effective([]schema.Architecture{schema.MOS6502}, schema.AsmCA65)

	for _, line := range []string{"NOP ", "XYZ a,b", ".byte 1, 2", "; ADC a,b", ""} {
		_, err := e.SignatureHelp(context.Background(), Request{Line: line, Col: len(line), Config: cfg, KB: base})
		assert.True(t, asmerrors.IsMiss(err), "line %q: %v", line, err)
	}
}

func TestOperands(t *testing.T) {
	assert.Equal(t, []string{"r/m32", "r32"}, Operands("adc r/m32, r32"))
	assert.Equal(t, []string{"4(%esp,%ebx)", "%eax"}, Operands("movl 4(%esp,%ebx), %eax"))
	assert.Equal(t, []string{"{r4, lr}"}, Operands("push {r4, lr}"))
	assert.Nil(t, Operands("nop"))
	assert.Nil(t, Operands("  ret   "))
}
