package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/paths"
	"asmlsp/internal/schema"
	"asmlsp/internal/version"
)

// ProjectFileNames are the project configuration files looked up in the
// workspace root, in priority order.
var ProjectFileNames = []string{".asm-lsp.toml", ".asm-lsp.yaml", ".asm-lsp.yml", ".asm-lsp.json"}

// ConfigOptions are auxiliary per-config options. Every field is optional;
// nil means "not set here" and falls through to a less specific config.
type ConfigOptions struct {
	CompileFlagsTxt    []string `toml:"compile_flags_txt,omitempty" yaml:"compile_flags_txt,omitempty" json:"compile_flags_txt,omitempty"`
	Compiler           *string  `toml:"compiler,omitempty" yaml:"compiler,omitempty" json:"compiler,omitempty"`
	DefaultDiagnostics *bool    `toml:"default_diagnostics,omitempty" yaml:"default_diagnostics,omitempty" json:"default_diagnostics,omitempty"`
	Diagnostics        *bool    `toml:"diagnostics,omitempty" yaml:"diagnostics,omitempty" json:"diagnostics,omitempty"`
}

// overlay copies every field set in o onto dst.
func (o *ConfigOptions) overlay(dst *ConfigOptions) {
	if o == nil {
		return
	}
	if o.CompileFlagsTxt != nil {
		dst.CompileFlagsTxt = o.CompileFlagsTxt
	}
	if o.Compiler != nil {
		dst.Compiler = o.Compiler
	}
	if o.DefaultDiagnostics != nil {
		dst.DefaultDiagnostics = o.DefaultDiagnostics
	}
	if o.Diagnostics != nil {
		dst.Diagnostics = o.Diagnostics
	}
}

// Config selects one assembler and one instruction set.
type Config struct {
	Assembler      schema.Assembler    `toml:"assembler" yaml:"assembler" json:"assembler"`
	InstructionSet schema.Architecture `toml:"instruction_set" yaml:"instruction_set" json:"instruction_set"`
	Opts           *ConfigOptions      `toml:"opts,omitempty" yaml:"opts,omitempty" json:"opts,omitempty"`
	Version        string              `toml:"version,omitempty" yaml:"version,omitempty" json:"version,omitempty"`
}

// ProjectConfig is a Config scoped to a directory.
type ProjectConfig struct {
	Path           string              `toml:"path" yaml:"path" json:"path"`
	Assembler      schema.Assembler    `toml:"assembler" yaml:"assembler" json:"assembler"`
	InstructionSet schema.Architecture `toml:"instruction_set" yaml:"instruction_set" json:"instruction_set"`
	Opts           *ConfigOptions      `toml:"opts,omitempty" yaml:"opts,omitempty" json:"opts,omitempty"`
	Version        string              `toml:"version,omitempty" yaml:"version,omitempty" json:"version,omitempty"`

	// dir is Path resolved against the workspace root.
	dir string
}

// Config returns the project's Config part.
func (p *ProjectConfig) Config() Config {
	return Config{Assembler: p.Assembler, InstructionSet: p.InstructionSet, Opts: p.Opts, Version: p.Version}
}

// Dir returns the resolved absolute scope directory.
func (p *ProjectConfig) Dir() string { return p.dir }

// RootConfig is the whole project configuration of a workspace. It is
// immutable once loaded.
type RootConfig struct {
	DefaultConfig *Config         `toml:"default_config,omitempty" yaml:"default_config,omitempty" json:"default_config,omitempty"`
	Projects      []ProjectConfig `toml:"project,omitempty" yaml:"project,omitempty" json:"project,omitempty"`

	// Source is the file the config was read from.
	Source string `toml:"-" yaml:"-" json:"-"`
	// Warnings are non-fatal problems found during validation.
	Warnings []string `toml:"-" yaml:"-" json:"-"`
}

// FindRootConfig returns the project config file for root: the first of
// ProjectFileNames present in root, else the global .asm-lsp.toml in the
// asmlsp home directory. ok is false when neither exists.
func FindRootConfig(root string) (path string, ok bool) {
	if root != "" {
		for _, name := range ProjectFileNames {
			p := filepath.Join(root, name)
			if fileExists(p) {
				return p, true
			}
		}
	}
	if global, err := paths.GetGlobalConfigPath(ProjectFileNames[0]); err == nil && fileExists(global) {
		return global, true
	}
	return "", false
}

// LoadRootConfig discovers and loads the project config for root. It returns
// nil and no error when no config exists, which means the open default.
func LoadRootConfig(root string, logger *zap.Logger) (*RootConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, ok := FindRootConfig(root)
	if !ok {
		logger.Debug("no project config found, using open default", zap.String("root", root))
		return nil, nil
	}
	return LoadRootConfigFile(path, root, logger)
}

// LoadRootConfigFile loads and validates one config file. Relative project
// paths are resolved against root.
func LoadRootConfigFile(path, root string, logger *zap.Logger) (*RootConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, asmerrors.NewAsmError(asmerrors.ConfigError, "cannot read "+path, err)
	}
	return ParseRootConfig(data, formatOf(path), path, root, logger)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}
	return "toml"
}

// ParseRootConfig decodes data in the given format ("toml", "yaml" or
// "json") and validates it.
func ParseRootConfig(data []byte, format, source, root string, logger *zap.Logger) (*RootConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var rc RootConfig
	switch format {
	case "toml":
		md, err := toml.Decode(string(data), &rc)
		if err != nil {
			return nil, asmerrors.NewAsmError(asmerrors.ConfigError, source+": malformed TOML", err)
		}
		for _, key := range md.Undecoded() {
			logger.Debug("unknown config key ignored", zap.String("file", source), zap.String("key", key.String()))
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &rc); err != nil {
			return nil, asmerrors.NewAsmError(asmerrors.ConfigError, source+": malformed YAML", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&rc); err != nil {
			return nil, asmerrors.NewAsmError(asmerrors.ConfigError, source+": malformed JSON", err)
		}
	default:
		return nil, asmerrors.NewAsmError(asmerrors.ConfigError, "unknown config format "+format, nil)
	}

	rc.Source = source
	if err := rc.validate(root); err != nil {
		return nil, err
	}
	for _, w := range rc.Warnings {
		logger.Warn(w, zap.String("file", source))
	}
	return &rc, nil
}

// validate normalizes enum spellings, resolves project paths and checks
// required fields.
func (rc *RootConfig) validate(root string) error {
	if rc.DefaultConfig != nil {
		if err := normalizeConfig("default_config", &rc.DefaultConfig.Assembler, &rc.DefaultConfig.InstructionSet); err != nil {
			return err
		}
		rc.checkVersion("default_config", rc.DefaultConfig.Version)
	}
	for i := range rc.Projects {
		p := &rc.Projects[i]
		field := fmt.Sprintf("project[%d]", i)
		if strings.TrimSpace(p.Path) == "" {
			return asmerrors.NewConfigError(field+".path", "missing required field", nil)
		}
		if err := normalizeConfig(field, &p.Assembler, &p.InstructionSet); err != nil {
			return err
		}
		p.dir = paths.Clean(p.Path, root)
		rc.checkVersion(field, p.Version)
	}
	return nil
}

func normalizeConfig(field string, asm *schema.Assembler, arch *schema.Architecture) error {
	if *asm == "" {
		return asmerrors.NewConfigError(field+".assembler", "missing required field", nil)
	}
	a, err := schema.ParseAssembler(string(*asm))
	if err != nil {
		return asmerrors.NewConfigError(field+".assembler", err.Error(), nil)
	}
	*asm = a

	if *arch == "" {
		return asmerrors.NewConfigError(field+".instruction_set", "missing required field", nil)
	}
	is, err := schema.ParseArchitecture(string(*arch))
	if err != nil {
		return asmerrors.NewConfigError(field+".instruction_set", err.Error(), nil)
	}
	*arch = is
	return nil
}

func (rc *RootConfig) checkVersion(field, v string) {
	if v == "" {
		return
	}
	if m := version.Major(v); m > version.Major(version.Version) {
		rc.Warnings = append(rc.Warnings, fmt.Sprintf(
			"%s.version %s is newer than server version %s; unknown settings may be ignored", field, v, version.Version))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
