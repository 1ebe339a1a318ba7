package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"asmlsp/internal/lsp"
	"asmlsp/internal/query"
	"asmlsp/internal/storage"
	"asmlsp/internal/version"
	"asmlsp/internal/watcher"
)

const defaultLogFile = "default"

var (
	serveRoot    string
	serveStdio   bool
	serveStore   string
	serveLogFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the language server",
	Long: `Start the language server on stdio.

The server speaks the Language Server Protocol over stdin/stdout. Logs go to
stderr or to logging.file from the settings.

Example usage:
  asmlsp serve --stdio

This command is typically launched by an editor and not directly by users.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Workspace root (default: the root sent by the client)")
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", true, "Use stdio for communication (default)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Store directory or .db bundle (default: from settings)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Log to this file (bare flag: asmlsp.log in the asmlsp home)")
	serveCmd.Flags().Lookup("log-file").NoOptDefVal = defaultLogFile
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if !serveStdio {
		return fmt.Errorf("only stdio transport is supported")
	}
	logger, closer, err := newServerLogger(serveLogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = closer.Close() }()
	defer func() { _ = logger.Sync() }()

	storePath := serveStore
	if storePath == "" {
		storePath = settings.StorePath()
	}
	logger.Info("Starting language server",
		zap.String("version", version.Version),
		zap.String("store", storePath))

	store, err := storage.Open(storePath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine, err := query.NewEngine(settings.Completion.CacheSize, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{
		Store:                 store,
		Engine:                engine,
		Logger:                logger,
		Root:                  serveRoot,
		MaxConcurrentRequests: settings.MaxConcurrentRequests,
		Watch: watcher.Config{
			Enabled:    settings.Watch.Enabled,
			DebounceMs: settings.Watch.DebounceMs,
		},
	})
	if err := server.Run(ctx); err != nil {
		logger.Error("Language server error", zap.Error(err))
		return err
	}
	return nil
}
