package main

import (
	"os"

	"go.uber.org/zap"

	"asmlsp/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := logging.NewLogger(logging.Config{
			Format: logging.HumanFormat,
			Level:  zap.ErrorLevel,
		})
		logger.Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
