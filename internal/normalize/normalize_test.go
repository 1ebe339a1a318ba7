package normalize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

func fixture(name string) string {
	return filepath.Join("testdata", name)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.xml", FormatXML, true},
		{"a.HTM", FormatHTML, true},
		{"a.tbl", FormatText, true},
		{"a.json", FormatJSON, true},
		{"a.pdf", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectFormat(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestExtractXMLInstructions(t *testing.T) {
	recs, err := ExtractFile(Source{Path: fixture("x86_instructions.xml"), Kind: schema.KindInstruction})
	require.NoError(t, err)
	require.Len(t, recs.Instructions, 3)

	mov := recs.Instructions[0]
	assert.Equal(t, "MOV", mov.Name)
	assert.Equal(t, []string{"movq", "movl"}, mov.Aliases)
	assert.Equal(t, []schema.Architecture{schema.X86, schema.X86_64}, mov.Arches)
	assert.Equal(t, "https://www.felixcloutier.com/x86/mov", mov.URL)
	assert.Equal(t, []schema.Form{
		{Assembler: schema.AsmNASM, Syntax: "MOV r/m64, r64"},
		{Assembler: schema.AsmGAS, Syntax: "movq %r64, r/m64"},
	}, mov.Forms)
}

func TestExtractTextRegisters(t *testing.T) {
	recs, err := ExtractFile(Source{Path: fixture("mips_registers.txt"), Kind: schema.KindRegister})
	require.NoError(t, err)
	require.Len(t, recs.Registers, 4)
	assert.Equal(t, []string{"$zero", "$0", "$r0"}, recs.Registers[0].Aliases)
	assert.Equal(t, schema.ClassZero, recs.Registers[0].Class)
	assert.Equal(t, 32, recs.Registers[0].Width)
	assert.Equal(t, schema.ClassReturnValue, recs.Registers[2].Class)
}

func TestExtractHTMLDirectives(t *testing.T) {
	recs, err := ExtractFile(Source{Path: fixture("gas_directives.html"), Kind: schema.KindDirective})
	require.NoError(t, err)

	want := []*schema.Directive{
		{
			Name:        ".global",
			Assembler:   schema.AsmGAS,
			Description: "Makes the symbol visible to the linker.",
			Signature:   ".global symbol",
			Examples:    []string{".global main"},
		},
		{
			Name:        ".byte",
			Assembler:   schema.AsmGAS,
			Description: "Emits each expression as one byte.",
			Signature:   ".byte expressions",
			Examples:    []string{".byte 1, 2, 3"},
		},
		{
			Name:        "section",
			Assembler:   schema.AsmNASM,
			Description: "Changes the current section.",
		},
	}
	if diff := cmp.Diff(want, recs.Directives); diff != "" {
		t.Errorf("directives mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractJSONCompositeExpansion(t *testing.T) {
	recs, err := ExtractFile(Source{Path: fixture("x86_registers.json"), Kind: schema.KindRegister})
	require.NoError(t, err)
	require.Len(t, recs.Registers, 3)

	assert.Equal(t, schema.X86, recs.Registers[0].Arch)
	assert.Equal(t, schema.X86_64, recs.Registers[1].Arch)
	assert.Equal(t, "eax", recs.Registers[1].Name)
	assert.Equal(t, []string{"eax", "%eax"}, recs.Registers[0].Aliases)
	for _, r := range recs.Registers {
		assert.False(t, r.Arch.IsComposite())
	}
}

func TestExtractUsesDeclaredHints(t *testing.T) {
	recs, err := ExtractFile(Source{
		Path:      fixture("nasm_directives.json"),
		Kind:      schema.KindDirective,
		Assembler: schema.AsmNASM,
	})
	require.NoError(t, err)
	require.Len(t, recs.Directives, 2)
	assert.Equal(t, schema.AsmNASM, recs.Directives[0].Assembler)

	_, err = ExtractFile(Source{Path: fixture("nasm_directives.json"), Kind: schema.KindDirective})
	assert.True(t, asmerrors.IsCode(err, asmerrors.ParseError), "no assembler anywhere")
}

func TestExtractParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      Source
		contains string
	}{
		{
			name:     "malformed xml",
			src:      Source{Path: fixture("broken.xml"), Kind: schema.KindInstruction},
			contains: "broken.xml",
		},
		{
			name:     "missing name",
			src:      Source{Path: fixture("missing_name.txt"), Kind: schema.KindInstruction},
			contains: "missing_name.txt:3",
		},
		{
			name:     "wrong kind",
			src:      Source{Path: fixture("x86_instructions.xml"), Kind: schema.KindDirective},
			contains: "no directive records",
		},
		{
			name:     "missing file",
			src:      Source{Path: fixture("nope.xml"), Kind: schema.KindInstruction},
			contains: "nope.xml",
		},
		{
			name:     "unknown extension",
			src:      Source{Path: fixture("manifest.yaml"), Kind: schema.KindInstruction},
			contains: "detect format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFile(tt.src)
			require.Error(t, err)
			assert.True(t, asmerrors.IsCode(err, asmerrors.ParseError))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestTextExtractorRejectsBadRows(t *testing.T) {
	src := Source{Path: "inline.txt", Kind: schema.KindInstruction, Arch: schema.X86}

	_, err := textExtractor{}.Extract(strings.NewReader("name|color\nNOP|red\n"), src)
	assert.ErrorContains(t, err, "unknown column")

	_, err = textExtractor{}.Extract(strings.NewReader("name|summary\nNOP\n"), src)
	assert.ErrorContains(t, err, "inline.txt:2")

	recs, err := textExtractor{}.Extract(strings.NewReader(
		"# comment\nname|syntax\nMOV|nasm:MOV r32, r32;go:MOVL R1, R2;mov a, b\n"), src)
	require.NoError(t, err)
	assert.Equal(t, []schema.Form{
		{Assembler: schema.AsmNASM, Syntax: "MOV r32, r32"},
		{Assembler: schema.AsmGo, Syntax: "MOVL R1, R2"},
		{Syntax: "mov a, b"},
	}, recs.Instructions[0].Forms)
}

func TestDedupInstructions(t *testing.T) {
	recs, err := ExtractFile(Source{Path: fixture("x86_instructions.xml"), Kind: schema.KindInstruction})
	require.NoError(t, err)

	got := Dedup(recs).Instructions
	require.Len(t, got, 2)
	assert.Equal(t, "ADC", got[0].Name)
	mov := got[1]
	assert.Equal(t, "MOV", mov.Name)
	assert.Equal(t, "Move data", mov.Summary)
	assert.Len(t, mov.Forms, 3)
	assert.Equal(t, schema.AsmMASM, mov.Forms[2].Assembler)
}

func TestDedupRegistersTransitive(t *testing.T) {
	in := []*schema.Register{
		{Name: "a", Aliases: []string{"a", "x"}, Arch: schema.MIPS},
		{Name: "b", Aliases: []string{"b", "y"}, Arch: schema.MIPS},
		{Name: "c", Aliases: []string{"c", "X", "Y"}, Arch: schema.MIPS, Description: "merged"},
		{Name: "a", Aliases: []string{"a"}, Arch: schema.ARM},
	}
	got := dedupRegisters(in)
	require.Len(t, got, 2)
	assert.Equal(t, schema.MIPS, got[1].Arch)
	assert.Equal(t, []string{"a", "x", "b", "y", "c"}, got[1].Aliases)
	assert.Equal(t, "merged", got[1].Description)
	assert.Equal(t, schema.ARM, got[0].Arch)
}

func TestDedupIsIdempotent(t *testing.T) {
	var all schema.Records
	for _, src := range []Source{
		{Path: fixture("x86_instructions.xml"), Kind: schema.KindInstruction},
		{Path: fixture("mips_registers.txt"), Kind: schema.KindRegister},
		{Path: fixture("nasm_directives.json"), Kind: schema.KindDirective, Assembler: schema.AsmNASM},
	} {
		recs, err := ExtractFile(src)
		require.NoError(t, err)
		all.Append(recs)
	}
	once := Dedup(all)
	twice := Dedup(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second dedup changed records:\n%s", diff)
	}
}

func runInto(t *testing.T, dir string, opts Options, sources ...Source) *Report {
	t.Helper()
	n := New(storage.NewFileStore(dir, zap.NewNop()), zap.NewNop(), opts)
	report, err := n.Run(context.Background(), sources)
	require.NoError(t, err)
	return report
}

func allSources() []Source {
	return []Source{
		{Path: fixture("x86_instructions.xml"), Kind: schema.KindInstruction},
		{Path: fixture("arm_instructions.xml"), Kind: schema.KindInstruction},
		{Path: fixture("mips_registers.txt"), Kind: schema.KindRegister},
		{Path: fixture("x86_registers.json"), Kind: schema.KindRegister},
		{Path: fixture("gas_directives.html"), Kind: schema.KindDirective},
		{Path: fixture("nasm_directives.json"), Kind: schema.KindDirective, Assembler: schema.AsmNASM},
	}
}

func TestRunWritesStores(t *testing.T) {
	dir := t.TempDir()
	report := runInto(t, dir, Options{}, allSources()...)
	assert.False(t, report.Failed())

	var keys []string
	for _, s := range report.Stores {
		keys = append(keys, s.Key.String())
	}
	assert.Equal(t, []string{
		"instruction/x86",
		"instruction/x86-64",
		"instruction/arm",
		"register/x86",
		"register/x86-64",
		"register/mips",
		"directive/gas",
		"directive/nasm",
	}, keys)

	st := storage.NewFileStore(dir, zap.NewNop())
	p, err := st.Read(context.Background(), schema.ArchKey(schema.KindRegister, schema.MIPS))
	require.NoError(t, err)
	require.Len(t, p.Registers, 3)

	// Alias sets within one architecture are disjoint.
	seen := make(map[string]string)
	for _, r := range p.Registers {
		assert.Contains(t, r.Aliases, r.Name)
		for _, a := range r.Aliases {
			owner, dup := seen[schema.Fold(a)]
			assert.False(t, dup, "alias %s on %s and %s", a, owner, r.Name)
			seen[schema.Fold(a)] = r.Name
		}
	}

	var v0 *schema.Register
	for _, r := range p.Registers {
		if r.Name == "$v0" {
			v0 = r
		}
	}
	require.NotNil(t, v0)
	assert.Equal(t, []string{"$v0", "$2", "$r2"}, v0.Aliases)
	assert.Equal(t, "Return value register 0, holds the first result", v0.Description)
}

func TestRunIsByteIdentical(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	runInto(t, a, Options{Concurrency: 1}, allSources()...)
	runInto(t, b, Options{Concurrency: 8}, allSources()...)

	// Merging the same inputs again must not change anything.
	runInto(t, b, Options{Merge: true}, allSources()...)

	entries, err := os.ReadDir(a)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		left, err := os.ReadFile(filepath.Join(a, e.Name()))
		require.NoError(t, err)
		right, err := os.ReadFile(filepath.Join(b, e.Name()))
		require.NoError(t, err)
		assert.Equal(t, left, right, e.Name())
	}
}

func TestRunPartialFailure(t *testing.T) {
	dir := t.TempDir()
	report := runInto(t, dir, Options{},
		Source{Path: fixture("broken.xml"), Kind: schema.KindInstruction},
		Source{Path: fixture("arm_instructions.xml"), Kind: schema.KindInstruction},
	)

	require.True(t, report.Failed())
	require.Len(t, report.Results, 2)
	assert.True(t, asmerrors.IsCode(report.Results[0].Err, asmerrors.ParseError))
	assert.NoError(t, report.Results[1].Err)
	assert.Equal(t, 1, report.Results[1].Records)

	_, err := os.Stat(filepath.Join(dir, schema.ArchKey(schema.KindInstruction, schema.ARM).FileName()))
	assert.NoError(t, err, "sibling store still written")
}

func TestRunMergeKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	runInto(t, dir, Options{}, Source{Path: fixture("x86_instructions.xml"), Kind: schema.KindInstruction})
	runInto(t, dir, Options{Merge: true},
		Source{Path: fixture("arm_instructions.xml"), Kind: schema.KindInstruction, Arch: schema.X86})

	p, err := storage.NewFileStore(dir, zap.NewNop()).
		Read(context.Background(), schema.ArchKey(schema.KindInstruction, schema.X86))
	require.NoError(t, err)
	require.Len(t, p.Instructions, 2)
	assert.Equal(t, "ADC", p.Instructions[0].Name)
	assert.Len(t, p.Instructions[0].Forms, 1, "arm file declares its own arch")
}

func TestManifest(t *testing.T) {
	m, err := LoadManifest(fixture("manifest.yaml"))
	require.NoError(t, err)

	sources, err := m.ToSources()
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, filepath.Join("testdata", "x86_instructions.xml"), sources[0].Path)
	assert.Equal(t, schema.KindRegister, sources[1].Kind)
	assert.Equal(t, schema.AsmNASM, sources[2].Assembler)

	bad := &Manifest{Sources: []ManifestEntry{{Path: "x.xml", Kind: "instruction", Arch: "vax"}}}
	_, err = bad.ToSources()
	assert.ErrorContains(t, err, "manifest entry 1")
}
