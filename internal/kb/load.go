package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

// Selection names the stores to load.
type Selection struct {
	Arches     []schema.Architecture
	Assemblers []schema.Assembler
}

// Keys returns the store keys implied by the selection, in canonical order.
// Composite architectures are expanded.
func (s Selection) Keys() []schema.StoreKey {
	arches := schema.ExpandAll(s.Arches)
	asms := schema.UniqueAssemblers(s.Assemblers)

	keys := make([]schema.StoreKey, 0, 2*len(arches)+len(asms))
	for _, a := range arches {
		keys = append(keys, schema.ArchKey(schema.KindInstruction, a))
	}
	for _, a := range arches {
		keys = append(keys, schema.ArchKey(schema.KindRegister, a))
	}
	for _, a := range asms {
		keys = append(keys, schema.AsmKey(a))
	}
	return keys
}

// Stats summarizes a loaded knowledge base.
type Stats struct {
	Stores           int `json:"stores"`
	Missing          int `json:"missing"`
	Instructions     int `json:"instructions"`
	Registers        int `json:"registers"`
	Directives       int `json:"directives"`
	InstructionNames int `json:"instructionNames"`
	RegisterNames    int `json:"registerNames"`
	DirectiveNames   int `json:"directiveNames"`
	DroppedAliases   int `json:"droppedAliases"`
}

// Load reads the selected stores concurrently and builds the indices in
// canonical order. A kind whose stores cannot be decoded is left empty and
// recorded in Degraded; Load fails only when every attempted kind degraded.
func Load(ctx context.Context, store storage.Store, sel Selection, logger *zap.Logger) (*KnowledgeBase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := sel.Keys()
	payloads := make([]*storage.Payload, len(keys))
	errs := make([]error, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, key := range keys {
		g.Go(func() error {
			p, err := store.Read(gctx, key)
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}
			payloads[i], errs[i] = p, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kb := &KnowledgeBase{
		instructions: newIndex[InstructionHit](),
		registers:    newIndex[RegisterHit](),
		directives:   newIndex[DirectiveHit](),
		Degraded:     make(map[schema.DocKind]error),
	}

	attempted := make(map[schema.DocKind]bool)
	for i, key := range keys {
		attempted[key.Kind] = true
		switch err := errs[i]; {
		case err == nil:
		case errors.Is(err, storage.ErrStoreNotFound):
			kb.stats.Missing++
			logger.Debug("store not present", zap.String("key", key.String()))
			payloads[i] = nil
		default:
			if _, seen := kb.Degraded[key.Kind]; !seen {
				kb.Degraded[key.Kind] = err
			}
			logger.Error("store unreadable, kind degraded",
				zap.String("key", key.String()),
				zap.String("kind", string(key.Kind)),
				zap.Error(err))
			payloads[i] = nil
		}
	}

	if len(attempted) > 0 && len(kb.Degraded) == len(attempted) {
		return nil, asmerrors.NewStoreError("*", fmt.Sprintf("every document kind failed to load (%d kinds)", len(attempted)),
			firstDegraded(kb.Degraded))
	}

	owners := make(map[string]*schema.Register)
	for i, key := range keys {
		p := payloads[i]
		if p == nil || kb.Degraded[key.Kind] != nil {
			continue
		}
		kb.stats.Stores++
		switch key.Kind {
		case schema.KindInstruction:
			kb.addInstructions(schema.Architecture(key.Key), p.Instructions)
		case schema.KindRegister:
			kb.addRegisters(schema.Architecture(key.Key), p.Registers, owners, logger)
		case schema.KindDirective:
			kb.addDirectives(schema.Assembler(key.Key), p.Directives)
		}
	}
	kb.seal()

	logger.Info("knowledge base loaded",
		zap.Int("stores", kb.stats.Stores),
		zap.Int("instructions", kb.stats.Instructions),
		zap.Int("registers", kb.stats.Registers),
		zap.Int("directives", kb.stats.Directives),
		zap.Int("degradedKinds", len(kb.Degraded)))
	return kb, nil
}

func firstDegraded(m map[schema.DocKind]error) error {
	for _, k := range schema.DocKinds {
		if err := m[k]; err != nil {
			return err
		}
	}
	return nil
}

func (kb *KnowledgeBase) addInstructions(arch schema.Architecture, recs []*schema.Instruction) {
	recs = append([]*schema.Instruction(nil), recs...)
	sort.SliceStable(recs, func(i, j int) bool { return schema.Fold(recs[i].Name) < schema.Fold(recs[j].Name) })
	for _, inst := range recs {
		kb.stats.Instructions++
		hit := InstructionHit{Arch: arch, Instruction: inst}
		kb.instructions.add(inst.Name, hit)
		for _, a := range inst.Aliases {
			if schema.Fold(a) != schema.Fold(inst.Name) {
				kb.instructions.add(a, hit)
			}
		}
	}
}

// addRegisters indexes every alias of every register. An alias already owned
// by another register of the same architecture is dropped from the index.
func (kb *KnowledgeBase) addRegisters(arch schema.Architecture, recs []*schema.Register, owners map[string]*schema.Register, logger *zap.Logger) {
	recs = append([]*schema.Register(nil), recs...)
	sort.SliceStable(recs, func(i, j int) bool { return schema.Fold(recs[i].Name) < schema.Fold(recs[j].Name) })
	for _, reg := range recs {
		kb.stats.Registers++
		hit := RegisterHit{Arch: arch, Register: reg}
		seen := make(map[string]bool)
		for _, a := range append([]string{reg.Name}, reg.Aliases...) {
			f := schema.Fold(a)
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			ownerKey := string(arch) + "\x00" + f
			if prev, ok := owners[ownerKey]; ok && prev != reg {
				kb.stats.DroppedAliases++
				logger.Warn("register alias collision, alias dropped",
					zap.String("arch", string(arch)),
					zap.String("alias", a),
					zap.String("owner", prev.Name),
					zap.String("register", reg.Name))
				continue
			}
			owners[ownerKey] = reg
			kb.registers.add(a, hit)
		}
	}
}

func (kb *KnowledgeBase) addDirectives(asm schema.Assembler, recs []*schema.Directive) {
	recs = append([]*schema.Directive(nil), recs...)
	sort.SliceStable(recs, func(i, j int) bool { return schema.Fold(recs[i].Name) < schema.Fold(recs[j].Name) })
	for _, d := range recs {
		kb.stats.Directives++
		kb.directives.add(d.Name, DirectiveHit{Assembler: asm, Directive: d})
	}
}
