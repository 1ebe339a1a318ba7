package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"asmlsp/internal/config"
	"asmlsp/internal/logging"
	"asmlsp/internal/version"
)

var (
	// settingsPath is the --settings flag value
	settingsPath string
	verbosity    int
	quiet        bool

	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "asmlsp",
	Short: "asmlsp - assembly documentation language server",
	Long: `asmlsp answers hover, completion and signature help requests for assembly
source files. It serves documentation for instructions, registers and
assembler directives from stores built by 'asmlsp normalize'.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.SetVersionTemplate("asmlsp version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "",
		"Settings file (default: asmlsp.{json,toml,yaml} in the asmlsp home)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
}

// loadSettings reads .env, then the settings file and ASMLSP_* overrides.
func loadSettings(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: ignoring .env: %v\n", err)
	}
	s, err := config.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	settings = s
	return nil
}

// newCLILogger logs to stderr at the level chosen by -v/-q.
func newCLILogger() *zap.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.LevelFromVerbosity(verbosity, quiet),
	})
}

// newServerLogger follows the settings file, writing to logging.file or to
// logFile when set. The returned closer is never nil.
func newServerLogger(logFile string) (*zap.Logger, io.Closer, error) {
	cfg := logging.Config{
		Format: logging.FormatFromString(settings.Logging.Format),
		Level:  logging.LevelFromString(settings.Logging.Level),
	}
	if verbosity > 0 {
		cfg.Level = logging.LevelFromVerbosity(verbosity, false)
	}
	if logFile == "" && settings.Logging.File == "" {
		return logging.NewLogger(cfg), io.NopCloser(nil), nil
	}
	path, err := logFilePath(logFile)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	return logging.NewFileLogger(path, cfg)
}
