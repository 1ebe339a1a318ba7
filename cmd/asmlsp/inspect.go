package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"asmlsp/internal/kb"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

var (
	inspectStore string
	inspectKind  string
	inspectKey   string
	inspectSpew  bool
	inspectStats bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List or dump documentation stores",
	Long: `List the stores present with their record counts, or dump the records of
one store.

Examples:
  asmlsp inspect                          # List every store
  asmlsp inspect --kind register          # Only register stores
  asmlsp inspect --key instruction/x86    # Dump one store as JSON
  asmlsp inspect --key directive/gas --spew
  asmlsp inspect --stats                  # Load everything and print index stats`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectStore, "store", "", "Store directory or .db bundle (default: from settings)")
	inspectCmd.Flags().StringVar(&inspectKind, "kind", "", "Only list stores of this kind")
	inspectCmd.Flags().StringVar(&inspectKey, "key", "", "Dump the store KIND/KEY")
	inspectCmd.Flags().BoolVar(&inspectSpew, "spew", false, "Dump Go values instead of JSON")
	inspectCmd.Flags().BoolVar(&inspectStats, "stats", false, "Load every store and print knowledge base stats")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newCLILogger()
	path := inspectStore
	if path == "" {
		path = settings.StorePath()
	}
	store, err := storage.Open(path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	w := cmd.OutOrStdout()

	switch {
	case inspectKey != "":
		key, err := parseStoreKey(inspectKey)
		if err != nil {
			return err
		}
		p, err := store.Read(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return dumpRecords(w, p.Records(), inspectSpew)

	case inspectStats:
		base, err := kb.Load(ctx, store, kb.Selection{Arches: schema.Architectures, Assemblers: schema.Assemblers}, logger)
		if err != nil {
			return err
		}
		for kind, derr := range base.Degraded {
			fmt.Fprintf(w, "degraded %s: %v\n", kind, derr)
		}
		return dumpRecords(w, base.Stats(), inspectSpew)
	}

	var kind schema.DocKind
	if inspectKind != "" {
		if kind, err = schema.ParseDocKind(inspectKind); err != nil {
			return err
		}
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if kind != "" && key.Kind != kind {
			continue
		}
		p, err := store.Read(ctx, key)
		if err != nil {
			fmt.Fprintf(w, "%-24s unreadable: %v\n", key, err)
			continue
		}
		fmt.Fprintf(w, "%-24s %6d records\n", key, p.Len())
	}
	return nil
}

// parseStoreKey parses "kind/key", e.g. "instruction/x86-64".
func parseStoreKey(s string) (schema.StoreKey, error) {
	k, v, ok := strings.Cut(s, "/")
	if !ok {
		return schema.StoreKey{}, fmt.Errorf("store key %q: want KIND/KEY", s)
	}
	kind, err := schema.ParseDocKind(k)
	if err != nil {
		return schema.StoreKey{}, err
	}
	key := schema.StoreKey{Kind: kind}
	if kind == schema.KindDirective {
		asm, err := schema.ParseAssembler(v)
		if err != nil {
			return schema.StoreKey{}, err
		}
		key.Key = string(asm)
	} else {
		arch, err := schema.ParseArchitecture(v)
		if err != nil {
			return schema.StoreKey{}, err
		}
		key.Key = string(arch)
	}
	return key, key.Validate()
}

func dumpRecords(w io.Writer, v interface{}, asSpew bool) error {
	if asSpew {
		spew.Fdump(w, v)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
