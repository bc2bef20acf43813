// Command nanvm is the REPL and non-interactive runner for the NaN-boxed
// Scheme implemented in this module, a Cobra CLI ported from
// cmd/z80opt/main.go's root-command-plus-subcommands shape.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/oisee/nanvm/pkg/display"
	"github.com/oisee/nanvm/pkg/eval"
	"github.com/oisee/nanvm/pkg/reader"
	"github.com/oisee/nanvm/pkg/session"
)

func main() {
	var gcThreshold int
	var checkpointPath string

	rootCmd := &cobra.Command{
		Use:   "nanvm",
		Short: "A NaN-boxed Scheme REPL with a mark-sweep heap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(gcThreshold, checkpointPath)
		},
	}
	rootCmd.PersistentFlags().IntVar(&gcThreshold, "gc-threshold", 0,
		"Allocations between proactive GC cycles (0 disables proactive collection)")
	rootCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "",
		"Session checkpoint file: resumed from on start, updated after every input that evaluates without error")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive read-eval-print loop (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(gcThreshold, checkpointPath)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Evaluate a file non-interactively, printing each top-level result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], gcThreshold)
		},
	}

	gcStatsCmd := &cobra.Command{
		Use:   "gc-stats [file]",
		Short: "Evaluate a file and report cumulative collector activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGCStats(args[0], gcThreshold)
		},
	}

	rootCmd.AddCommand(replCmd, runCmd, gcStatsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFile(path string, gcThreshold int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nanvm: %w", err)
	}

	i := eval.New(gcThreshold)
	r := reader.New(i.H, i.Syms)
	forms, err := r.ReadAll(string(data))
	if err != nil {
		return fmt.Errorf("nanvm: parse error: %w", err)
	}
	for _, f := range forms {
		v, err := i.Eval(i.Global, f)
		if err != nil {
			return fmt.Errorf("nanvm: eval error: %w", err)
		}
		if !v.IsVoid() {
			fmt.Println(display.String(i.H, i.Syms, v))
		}
	}
	return nil
}

// runGCStats evaluates path the same way run does, then prints the
// collector's cumulative totals (cycles, survivors, freed) instead of the
// forms' results, exposing gc.Collector.Stats() for offline GC tuning.
func runGCStats(path string, gcThreshold int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nanvm: %w", err)
	}

	i := eval.New(gcThreshold)
	r := reader.New(i.H, i.Syms)
	forms, err := r.ReadAll(string(data))
	if err != nil {
		return fmt.Errorf("nanvm: parse error: %w", err)
	}
	for _, f := range forms {
		if _, err := i.Eval(i.Global, f); err != nil {
			return fmt.Errorf("nanvm: eval error: %w", err)
		}
	}

	stats := i.GC.Stats()
	fmt.Printf("cycles=%d survivors=%d freed=%d\n", stats.Cycles, stats.Survivors, stats.Freed)
	return nil
}

// runREPL implements the prompt ">> ", paren-balancing-across-lines read
// loop ported from the original source's repl.rs, exiting on the literal
// line "exit".
func runREPL(gcThreshold int, checkpointPath string) error {
	i := eval.New(gcThreshold)
	r := reader.New(i.H, i.Syms)
	history := loadHistory(i, r, checkpointPath)

	scanner := bufio.NewScanner(os.Stdin)
	var pending string
	for {
		if pending == "" {
			fmt.Print(">> ")
		} else {
			fmt.Print(".. ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if pending == "" && strings.TrimSpace(line) == "exit" {
			break
		}
		if pending == "" {
			pending = line
		} else {
			pending = pending + "\n" + line
		}
		if !reader.Balanced(pending) {
			continue
		}

		src := pending
		pending = ""
		if strings.TrimSpace(src) == "" {
			continue
		}

		if evalSource(i, r, src) {
			history = append(history, src)
			saveHistory(checkpointPath, history)
		}
	}
	return nil
}

// loadHistory resumes a checkpoint if one was requested and exists,
// replaying every recorded form against the fresh interpreter.
func loadHistory(i *eval.Interp, r *reader.Reader, checkpointPath string) []string {
	if checkpointPath == "" {
		return nil
	}
	ckpt, err := session.LoadCheckpoint(checkpointPath)
	if err != nil {
		if !os.IsNotExist(err) {
			glog.Errorf("nanvm: loading checkpoint %s: %v", checkpointPath, err)
		}
		return nil
	}
	for _, src := range ckpt.History {
		evalSource(i, r, src)
	}
	fmt.Printf("resumed %d form(s) from %s\n", len(ckpt.History), checkpointPath)
	return ckpt.History
}

func saveHistory(checkpointPath string, history []string) {
	if checkpointPath == "" {
		return
	}
	if err := session.SaveCheckpoint(checkpointPath, &session.Checkpoint{History: history}); err != nil {
		glog.Errorf("nanvm: saving checkpoint %s: %v", checkpointPath, err)
	}
}

// evalSource reads and evaluates every top-level form in src, printing each
// non-void result. Reports whether src was clean enough to count as a
// history entry (parsed, and every form evaluated without error).
func evalSource(i *eval.Interp, r *reader.Reader, src string) bool {
	forms, err := r.ReadAll(src)
	if err != nil {
		glog.Errorf("nanvm: %v", err)
		return false
	}
	ok := true
	for _, f := range forms {
		v, err := i.Eval(i.Global, f)
		if err != nil {
			glog.Errorf("nanvm: %v", err)
			ok = false
			continue
		}
		if !v.IsVoid() {
			fmt.Println(display.String(i.H, i.Syms, v))
		}
	}
	return ok
}
