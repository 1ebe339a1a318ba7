package config

import (
	"sort"
	"strings"

	"asmlsp/internal/paths"
	"asmlsp/internal/schema"
)

// SourceOpen marks an effective config that enables everything because no
// config applied.
const (
	SourceOpen    = "open"
	SourceDefault = "default"
)

// Effective is the configuration that applies to one document.
type Effective struct {
	Arches     []schema.Architecture
	Assemblers []schema.Assembler
	Opts       ConfigOptions
	Version    string
	// Source is SourceOpen, SourceDefault or the winning project's path.
	Source string
	// Fingerprint identifies the arch/assembler selection, for cache keys.
	Fingerprint string
}

// ArchSet returns the effective architectures as a set.
func (e Effective) ArchSet() schema.ArchSet {
	return schema.NewArchSet(e.Arches...)
}

// OpenDefault enables every architecture and assembler.
func OpenDefault() Effective {
	return newEffective(schema.Architectures, schema.Assemblers, ConfigOptions{}, "", SourceOpen)
}

func newEffective(arches []schema.Architecture, asms []schema.Assembler, opts ConfigOptions, version, source string) Effective {
	e := Effective{
		Arches:     schema.ExpandAll(arches),
		Assemblers: schema.UniqueAssemblers(asms),
		Opts:       opts,
		Version:    version,
		Source:     source,
	}
	var sb strings.Builder
	for i, a := range e.Arches {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(string(a))
	}
	sb.WriteByte('|')
	for i, a := range e.Assemblers {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(string(a))
	}
	e.Fingerprint = sb.String()
	return e
}

// Resolve selects the effective config for the document at docPath. The
// project whose path is the longest ancestor of docPath wins, first declared
// on ties; otherwise default_config applies; otherwise the open default.
// Opts are layered from default_config through every matching project, least
// specific first. A nil RootConfig resolves to the open default.
func (rc *RootConfig) Resolve(docPath string) Effective {
	if rc == nil {
		return OpenDefault()
	}
	doc := paths.Clean(docPath, "")

	type match struct {
		idx int
		p   *ProjectConfig
	}
	var matches []match
	for i := range rc.Projects {
		p := &rc.Projects[i]
		if paths.IsAncestor(p.dir, doc) {
			matches = append(matches, match{idx: i, p: p})
		}
	}
	// Least specific first; on equal length the first declared sorts last so
	// it is applied last and wins.
	sort.SliceStable(matches, func(i, j int) bool {
		li, lj := len(matches[i].p.dir), len(matches[j].p.dir)
		if li != lj {
			return li < lj
		}
		return matches[i].idx > matches[j].idx
	})

	var opts ConfigOptions
	if rc.DefaultConfig != nil {
		rc.DefaultConfig.Opts.overlay(&opts)
	}
	for _, m := range matches {
		m.p.Opts.overlay(&opts)
	}

	if len(matches) > 0 {
		w := matches[len(matches)-1].p
		return newEffective([]schema.Architecture{w.InstructionSet}, []schema.Assembler{w.Assembler}, opts, w.Version, w.Path)
	}
	if d := rc.DefaultConfig; d != nil {
		return newEffective([]schema.Architecture{d.InstructionSet}, []schema.Assembler{d.Assembler}, opts, d.Version, SourceDefault)
	}
	return newEffective(schema.Architectures, schema.Assemblers, opts, "", SourceOpen)
}

// Selection returns every architecture and assembler any document of the
// workspace can resolve to. Without a default_config, documents outside all
// projects fall back to the open default, so everything is selected.
func (rc *RootConfig) Selection() ([]schema.Architecture, []schema.Assembler) {
	if rc == nil || rc.DefaultConfig == nil {
		return schema.ExpandAll(schema.Architectures), schema.UniqueAssemblers(schema.Assemblers)
	}
	arches := []schema.Architecture{rc.DefaultConfig.InstructionSet}
	asms := []schema.Assembler{rc.DefaultConfig.Assembler}
	for _, p := range rc.Projects {
		arches = append(arches, p.InstructionSet)
		asms = append(asms, p.Assembler)
	}
	return schema.ExpandAll(arches), schema.UniqueAssemblers(asms)
}
