package config

import (
	"fmt"
	"os"

	gotoml "github.com/pelletier/go-toml/v2"

	"asmlsp/internal/schema"
	"asmlsp/internal/version"
)

// SampleRootConfig returns a starter project config for the given defaults.
func SampleRootConfig(asm schema.Assembler, arch schema.Architecture) *RootConfig {
	diagnostics := true
	return &RootConfig{
		DefaultConfig: &Config{
			Assembler:      asm,
			InstructionSet: arch,
			Version:        version.Version,
			Opts: &ConfigOptions{
				Diagnostics:        &diagnostics,
				DefaultDiagnostics: &diagnostics,
			},
		},
	}
}

// EncodeTOML encodes rc in the .asm-lsp.toml layout.
func (rc *RootConfig) EncodeTOML() ([]byte, error) {
	return gotoml.Marshal(rc)
}

// WriteSample writes a sample config to path, refusing to overwrite unless
// force is set.
func WriteSample(path string, rc *RootConfig, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := rc.EncodeTOML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
