package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	imacros "github.com/chapelsoftware/iMacros-Remastered-sub001/src"
)

var (
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	debugColor = color.New(color.FgCyan)
)

// colorWriter colors engine log lines by their level prefix before
// forwarding them to the underlying stream.
type colorWriter struct {
	out io.Writer
}

func (w colorWriter) Write(p []byte) (int, error) {
	line := string(p)
	switch {
	case strings.HasPrefix(line, "[ERROR]"):
		errorColor.Fprint(w.out, line)
	case strings.HasPrefix(line, "[WARN]"):
		warnColor.Fprint(w.out, line)
	case strings.HasPrefix(line, "[DEBUG"):
		debugColor.Fprint(w.out, line)
	default:
		fmt.Fprint(w.out, line)
	}
	return len(p), nil
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "macrorun",
		Short: "Run and record iMacros-compatible macros against abstract browser bridges",
	}

	root.AddCommand(newRunCommand(v))
	root.AddCommand(newRecordCommand(v))
	root.AddCommand(newVersionCommand())
	return root
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	var loops int
	var debug bool

	cmd := &cobra.Command{
		Use:   "run [macro-file]",
		Short: "Execute a macro file with no browser bridges attached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadCLIConfig(v)
			if cmd.Flags().Changed("loops") {
				cfg.MaxLoops = loops
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			engine := imacros.New(&imacros.Config{
				Debug:             cfg.Debug,
				Stdout:            colorWriter{out: os.Stdout},
				Stderr:            colorWriter{out: os.Stderr},
				DefaultTagTimeout: cfg.TagTimeout,
			}, imacros.Bridges{})

			result := engine.RunMacro(context.Background(), string(text), cfg.MaxLoops)
			printResult(result)
			if !result.Success {
				return fmt.Errorf("macro failed: %s", result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&loops, "loops", 1, "number of loop iterations")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func newRecordCommand(v *viper.Viper) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Write the recorder's generated macro to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadCLIConfig(v)
			if cmd.Flags().Changed("out") {
				cfg.RecordOut = out
			}
			engine := imacros.New(imacros.DefaultConfig(), imacros.Bridges{})
			rec := engine.Recorder()
			rec.Start()
			text := rec.GenerateMacro()
			return os.WriteFile(cfg.RecordOut, []byte(text), 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the recorded macro")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(imacros.EngineVersion)
			return nil
		},
	}
}

func printResult(result imacros.MacroResult) {
	if result.Success {
		fmt.Printf("OK  loops=%d extracted=%d time=%dms\n",
			result.LoopsCompleted, len(result.ExtractData), result.ExecutionTimeMs)
		return
	}
	errorColor.Printf("FAIL line=%d code=%d %s\n", result.ErrorLine, result.ErrorCode, result.ErrorMessage)
}
