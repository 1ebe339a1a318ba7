package schema

import (
	"fmt"
	"strings"
)

// StoreKey addresses one serialized store: a document kind plus the concrete
// architecture (instructions, registers) or assembler (directives) it covers.
type StoreKey struct {
	Kind DocKind `json:"kind"`
	Key  string  `json:"key"`
}

// ArchKey builds the key for an architecture-scoped store.
func ArchKey(kind DocKind, a Architecture) StoreKey {
	return StoreKey{Kind: kind, Key: string(a)}
}

// AsmKey builds the key for a directive store.
func AsmKey(a Assembler) StoreKey {
	return StoreKey{Kind: KindDirective, Key: string(a)}
}

func (k StoreKey) String() string {
	return string(k.Kind) + "/" + k.Key
}

// FileName is the on-disk name of the store inside a store directory.
func (k StoreKey) FileName() string {
	return string(k.Kind) + "." + k.Key + ".kb.zst"
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (StoreKey, bool) {
	base, ok := strings.CutSuffix(name, ".kb.zst")
	if !ok {
		return StoreKey{}, false
	}
	kind, key, ok := strings.Cut(base, ".")
	if !ok {
		return StoreKey{}, false
	}
	k := StoreKey{Kind: DocKind(kind), Key: key}
	return k, k.Validate() == nil
}

// Validate checks that the key names a known kind and a concrete
// architecture or assembler matching that kind.
func (k StoreKey) Validate() error {
	switch k.Kind {
	case KindInstruction, KindRegister:
		a := Architecture(k.Key)
		if !a.Valid() || a.IsComposite() {
			return fmt.Errorf("store key %s: %q is not a concrete architecture", k, k.Key)
		}
	case KindDirective:
		if !Assembler(k.Key).Valid() {
			return fmt.Errorf("store key %s: %q is not an assembler", k, k.Key)
		}
	default:
		return fmt.Errorf("store key %s: unknown kind", k)
	}
	return nil
}

// Less orders keys by kind, then architecture/assembler enumeration order.
func (k StoreKey) Less(o StoreKey) bool {
	if k.Kind != o.Kind {
		return kindOrder(k.Kind) < kindOrder(o.Kind)
	}
	if k.Kind == KindDirective {
		return Assembler(k.Key).Order() < Assembler(o.Key).Order()
	}
	return Architecture(k.Key).Order() < Architecture(o.Key).Order()
}

func kindOrder(k DocKind) int {
	for i, d := range DocKinds {
		if d == k {
			return i
		}
	}
	return len(DocKinds)
}
