package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"asmlsp/internal/paths"
)

var (
	logFollow bool
	logLines  int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View language server logs",
	Long: `View the language server log file.

The server logs to a file when logging.file is set in the settings or when
started with 'asmlsp serve --log-file'.

Examples:
  asmlsp log              # Show last 50 lines
  asmlsp log -n 100       # Show last 100 lines
  asmlsp log -f           # Follow log output (tail -f)`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output")
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logCmd)
}

// logFilePath returns the configured log file, or the default one in the
// asmlsp home.
func logFilePath(override string) (string, error) {
	switch {
	case override != "" && override != defaultLogFile:
		return override, nil
	case override == "" && settings != nil && settings.Logging.File != "":
		return settings.Logging.File, nil
	}
	return paths.GetLogPath()
}

func runLog(cmd *cobra.Command, args []string) error {
	logPath, err := logFilePath("")
	if err != nil {
		return fmt.Errorf("failed to get log path: %w", err)
	}
	w := cmd.OutOrStdout()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(w, "No logs found.")
		fmt.Fprintf(w, "\nLog file location: %s\n", logPath)
		fmt.Fprintln(w, "\nLogs are written when logging.file is set or 'asmlsp serve --log-file' is used.")
		return nil
	}

	if logFollow {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return followLogFile(ctx, w, logPath)
	}
	return showLogLines(w, logPath, logLines)
}

func showLogLines(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return scanner.Err()
}

func followLogFile(ctx context.Context, w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	fmt.Fprintf(w, "Following %s (Ctrl+C to stop)\n\n", path)

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			fmt.Fprint(w, line)
		}
		if err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}
