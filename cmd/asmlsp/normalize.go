package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"asmlsp/internal/normalize"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

var (
	normKind      string
	normFormat    string
	normArch      string
	normAssembler string
	normManifest  string
	normOut       string
	normMerge     bool
	normJobs      int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [flags] FILE...",
	Short: "Build documentation stores from raw sources",
	Long: `Extract raw instruction, register or directive documentation into
canonical stores.

Sources are given either as files sharing one --kind, or as a YAML manifest
listing each file with its kind and hints. The command exits non-zero when any
source fails; the stores of the sources that succeeded are still written.

Examples:
  asmlsp normalize --kind instruction --arch x86-64 --out stores x86.xml
  asmlsp normalize --kind directive --assembler gas --out kb.db gas.html
  asmlsp normalize --manifest data/raw/manifest.yaml --out stores`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVar(&normKind, "kind", "", "Document kind: instruction, register or directive")
	normalizeCmd.Flags().StringVar(&normFormat, "format", "", "Raw format: xml, html, text or json (default: from extension)")
	normalizeCmd.Flags().StringVar(&normArch, "arch", "", "Architecture hint for records that do not name one")
	normalizeCmd.Flags().StringVar(&normAssembler, "assembler", "", "Assembler hint for records that do not name one")
	normalizeCmd.Flags().StringVar(&normManifest, "manifest", "", "YAML manifest listing the sources")
	normalizeCmd.Flags().StringVar(&normOut, "out", "", "Output store directory or .db bundle (default: from settings)")
	normalizeCmd.Flags().BoolVar(&normMerge, "merge", false, "Merge into existing stores instead of replacing them")
	normalizeCmd.Flags().IntVarP(&normJobs, "jobs", "j", 0, "Parallel extractions (default: GOMAXPROCS)")
	normalizeCmd.MarkFlagsMutuallyExclusive("manifest", "kind")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	logger := newCLILogger()

	var sources []normalize.Source
	var err error
	if normManifest != "" {
		if len(args) > 0 {
			return fmt.Errorf("files cannot be combined with --manifest")
		}
		m, err := normalize.LoadManifest(normManifest)
		if err != nil {
			return err
		}
		if sources, err = m.ToSources(); err != nil {
			return err
		}
	} else if sources, err = sourcesFromFlags(args, normKind, normFormat, normArch, normAssembler); err != nil {
		return err
	}

	out := normOut
	if out == "" {
		out = settings.StorePath()
	}
	store, err := storage.Open(out, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n := normalize.New(store, logger, normalize.Options{Merge: normMerge, Concurrency: normJobs})
	report, err := n.Run(context.Background(), sources)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("%d of %d sources failed", countFailed(report), len(report.Results))
	}
	return nil
}

// sourcesFromFlags builds one source per file from the shared flag hints.
func sourcesFromFlags(files []string, kind, format, arch, asm string) ([]normalize.Source, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files (pass files or --manifest)")
	}
	if kind == "" {
		return nil, fmt.Errorf("--kind is required without --manifest")
	}
	base := normalize.Source{}
	var err error
	if base.Kind, err = schema.ParseDocKind(kind); err != nil {
		return nil, err
	}
	if format != "" {
		if base.Format, err = normalize.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	if arch != "" {
		if base.Arch, err = schema.ParseArchitecture(arch); err != nil {
			return nil, err
		}
	}
	if asm != "" {
		if base.Assembler, err = schema.ParseAssembler(asm); err != nil {
			return nil, err
		}
	}

	out := make([]normalize.Source, 0, len(files))
	for _, f := range files {
		src := base
		src.Path = f
		out = append(out, src)
	}
	return out, nil
}

func printReport(w io.Writer, r *normalize.Report) {
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "FAIL  %s: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Fprintf(w, "ok    %s (%d %s records)\n", res.Path, res.Records, res.Kind)
	}
	for _, st := range r.Stores {
		fmt.Fprintf(w, "wrote %s (%d records)\n", st.Key, st.Records)
	}
}

func countFailed(r *normalize.Report) int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
