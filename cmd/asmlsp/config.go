package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"asmlsp/internal/config"
	"asmlsp/internal/paths"
	"asmlsp/internal/schema"
)

var (
	configRoot      string
	configFormat    string
	configForce     bool
	configGlobal    bool
	configAssembler string
	configArch      string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage project configuration",
	Long:  "Create, inspect and validate .asm-lsp.toml project configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .asm-lsp.toml",
	Long: `Write a starter .asm-lsp.toml to the workspace root, or to the asmlsp home
with --global.

Examples:
  asmlsp config init --assembler gas --arch x86-64
  asmlsp config init --global --assembler nasm --arch x86`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show [FILE...]",
	Short: "Show the effective configuration",
	Long: `Display the configuration that applies to each file, or to the workspace
root when no file is given.

Examples:
  asmlsp config show                   # Effective config at the root
  asmlsp config show src/boot.s        # Effective config for one file
  asmlsp config show --format json`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the project configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.PersistentFlags().StringVar(&configRoot, "root", ".", "Workspace root")

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configGlobal, "global", false, "Write the global config in the asmlsp home")
	configInitCmd.Flags().StringVar(&configAssembler, "assembler", string(schema.AsmGAS), "Default assembler")
	configInitCmd.Flags().StringVar(&configArch, "arch", string(schema.X86_64), "Default instruction set")

	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (json, human)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	asm, err := schema.ParseAssembler(configAssembler)
	if err != nil {
		return err
	}
	arch, err := schema.ParseArchitecture(configArch)
	if err != nil {
		return err
	}

	path := filepath.Join(configRoot, config.ProjectFileNames[0])
	if configGlobal {
		if path, err = globalConfigPath(); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
	}
	if err := config.WriteSample(path, config.SampleRootConfig(asm, arch), configForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func globalConfigPath() (string, error) {
	return paths.GetGlobalConfigPath(config.ProjectFileNames[0])
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(configRoot)
	if err != nil {
		return err
	}
	rc, err := config.LoadRootConfig(root, newCLILogger())
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{root}
	}

	views := make([]effectiveView, 0, len(args))
	for _, a := range args {
		p, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		views = append(views, newEffectiveView(p, rc.Resolve(p)))
	}

	w := cmd.OutOrStdout()
	if configFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	source := "none (open default)"
	if rc != nil {
		source = rc.Source
	}
	fmt.Fprintf(w, "Config file: %s\n", source)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, v := range views {
		printEffective(w, v)
	}
	return nil
}

// effectiveView is the printable form of config.Effective.
type effectiveView struct {
	Path       string                `json:"path"`
	Source     string                `json:"source"`
	Arches     []schema.Architecture `json:"arches"`
	Assemblers []schema.Assembler    `json:"assemblers"`
	Version    string                `json:"version,omitempty"`
	Options    config.ConfigOptions  `json:"opts"`
}

func newEffectiveView(path string, e config.Effective) effectiveView {
	return effectiveView{
		Path:       path,
		Source:     e.Source,
		Arches:     e.Arches,
		Assemblers: e.Assemblers,
		Version:    e.Version,
		Options:    e.Opts,
	}
}

func printEffective(w io.Writer, v effectiveView) {
	fmt.Fprintf(w, "%s\n", v.Path)
	fmt.Fprintf(w, "  source:     %s\n", v.Source)
	fmt.Fprintf(w, "  arches:     %s\n", joinNames(v.Arches))
	fmt.Fprintf(w, "  assemblers: %s\n", joinNames(v.Assemblers))
	if v.Version != "" {
		fmt.Fprintf(w, "  version:    %s\n", v.Version)
	}
}

func joinNames[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(configRoot)
	if err != nil {
		return err
	}
	rc, err := config.LoadRootConfig(root, newCLILogger())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if rc == nil {
		fmt.Fprintln(w, "No project config found; every architecture and assembler is enabled.")
		return nil
	}
	for _, warn := range rc.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	fmt.Fprintf(w, "%s is valid (%d projects)\n", rc.Source, len(rc.Projects))
	return nil
}
