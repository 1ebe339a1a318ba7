package normalize

import (
	"sort"

	"asmlsp/internal/schema"
)

// groupByKey splits records into per-store buckets. Instructions are copied
// into the store of every architecture they cover; registers and directives
// go to their single owner.
func groupByKey(recs schema.Records) map[schema.StoreKey]*schema.Records {
	groups := make(map[schema.StoreKey]*schema.Records)
	bucket := func(k schema.StoreKey) *schema.Records {
		b, ok := groups[k]
		if !ok {
			b = &schema.Records{}
			groups[k] = b
		}
		return b
	}

	for _, inst := range recs.Instructions {
		for _, a := range schema.ExpandAll(inst.Arches) {
			b := bucket(schema.ArchKey(schema.KindInstruction, a))
			b.Instructions = append(b.Instructions, cloneInstruction(inst))
		}
	}
	for _, reg := range recs.Registers {
		for _, a := range reg.Arch.Expand() {
			r := *reg
			r.Arch = a
			r.Aliases = append([]string(nil), reg.Aliases...)
			b := bucket(schema.ArchKey(schema.KindRegister, a))
			b.Registers = append(b.Registers, &r)
		}
	}
	for _, d := range recs.Directives {
		b := bucket(schema.AsmKey(d.Assembler))
		c := *d
		c.Examples = append([]string(nil), d.Examples...)
		b.Directives = append(b.Directives, &c)
	}
	return groups
}

func cloneInstruction(i *schema.Instruction) *schema.Instruction {
	c := *i
	c.Aliases = append([]string(nil), i.Aliases...)
	c.Arches = append([]schema.Architecture(nil), i.Arches...)
	c.Forms = append([]schema.Form(nil), i.Forms...)
	return &c
}

// Dedup collapses duplicate records within one store and sorts the result.
// Running it on its own output is a no-op.
func Dedup(recs schema.Records) schema.Records {
	return schema.Records{
		Instructions: dedupInstructions(recs.Instructions),
		Registers:    dedupRegisters(recs.Registers),
		Directives:   dedupDirectives(recs.Directives),
	}
}

// dedupInstructions merges instructions sharing a case-folded mnemonic.
func dedupInstructions(in []*schema.Instruction) []*schema.Instruction {
	byName := make(map[string]*schema.Instruction)
	var out []*schema.Instruction
	for _, inst := range in {
		key := schema.Fold(inst.Name)
		if kept, ok := byName[key]; ok {
			mergeInstruction(kept, inst)
			continue
		}
		c := cloneInstruction(inst)
		byName[key] = c
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessName(out[i].Name, out[j].Name)
	})
	return out
}

func mergeInstruction(dst, src *schema.Instruction) {
	dst.Aliases = uniqueFolded(append(dst.Aliases, src.Aliases...), dst.Name)
	dst.Arches = schema.ExpandAll(append(dst.Arches, src.Arches...))
	dst.Summary = longer(dst.Summary, src.Summary)
	dst.Description = longer(dst.Description, src.Description)
	dst.Flags = longer(dst.Flags, src.Flags)
	if dst.URL == "" {
		dst.URL = src.URL
	}
	for _, f := range src.Forms {
		dst.Forms = appendForm(dst.Forms, f)
	}
}

// dedupRegisters merges registers that share any case-folded alias. Sharing
// is transitive, so a union-find groups them before merging.
func dedupRegisters(in []*schema.Register) []*schema.Register {
	parent := make([]int, len(in))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Lower index stays root so the first-seen record leads the merge.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	owner := make(map[string]int)
	for i, r := range in {
		for _, a := range append([]string{r.Name}, r.Aliases...) {
			key := string(r.Arch) + "\x00" + schema.Fold(a)
			if j, ok := owner[key]; ok {
				union(i, j)
			} else {
				owner[key] = i
			}
		}
	}

	merged := make(map[int]*schema.Register)
	var out []*schema.Register
	for i, r := range in {
		root := find(i)
		if kept, ok := merged[root]; ok {
			mergeRegister(kept, r)
			continue
		}
		c := *r
		c.Aliases = uniqueFolded(append([]string{r.Name}, r.Aliases...), "")
		merged[root] = &c
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Arch != out[j].Arch {
			return out[i].Arch.Order() < out[j].Arch.Order()
		}
		return lessName(out[i].Name, out[j].Name)
	})
	return out
}

func mergeRegister(dst, src *schema.Register) {
	dst.Aliases = uniqueFolded(append(append(dst.Aliases, src.Name), src.Aliases...), "")
	if dst.Class == schema.ClassOther || dst.Class == "" {
		dst.Class = src.Class
	}
	if dst.Width == 0 {
		dst.Width = src.Width
	}
	dst.Description = longer(dst.Description, src.Description)
}

// dedupDirectives merges directives sharing a case-folded name within an
// assembler.
func dedupDirectives(in []*schema.Directive) []*schema.Directive {
	byName := make(map[string]*schema.Directive)
	var out []*schema.Directive
	for _, d := range in {
		key := string(d.Assembler) + "\x00" + schema.Fold(d.Name)
		if kept, ok := byName[key]; ok {
			kept.Description = longer(kept.Description, d.Description)
			kept.Signature = longer(kept.Signature, d.Signature)
			for _, ex := range d.Examples {
				kept.Examples = appendUnique(kept.Examples, ex)
			}
			continue
		}
		c := *d
		c.Examples = append([]string(nil), d.Examples...)
		byName[key] = &c
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Assembler != out[j].Assembler {
			return out[i].Assembler.Order() < out[j].Assembler.Order()
		}
		return lessName(out[i].Name, out[j].Name)
	})
	return out
}

// longer keeps the more complete of two descriptions; ties keep a.
func longer(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// lessName orders names case-insensitively, then exactly.
func lessName(a, b string) bool {
	fa, fb := schema.Fold(a), schema.Fold(b)
	if fa != fb {
		return fa < fb
	}
	return a < b
}
