package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepflow/pkg/diagram"
	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/prompt"
	"github.com/ormasoftchile/stepflow/pkg/report"
	"github.com/ormasoftchile/stepflow/pkg/schema"
	"github.com/ormasoftchile/stepflow/pkg/step"
	"github.com/ormasoftchile/stepflow/pkg/trace"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv(".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file and sets any variables that aren't already
// set in the environment. Lines are KEY=VALUE (or KEY="VALUE"). Comments
// (#) and blanks are skipped.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// envOr returns the value of the environment variable key, or fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// options are the persistent flags shared by every command.
type options struct {
	catalog  string
	trace    string
	report   string
	logLevel string
	dir      string
}

// app carries the streams and settings of one CLI invocation.
type app struct {
	opts   options
	format report.Format
	logger *slog.Logger

	in   io.Reader // nil selects the readline terminal
	out  io.Writer
	errw io.Writer
}

func newRootCmd(in io.Reader, out, errw io.Writer) *cobra.Command {
	a := &app{out: out, errw: errw}
	if in != os.Stdin {
		a.in = in
	}

	root := &cobra.Command{
		Use:   "stepflow",
		Short: "Interactive step flow runner",
		Long:  "stepflow builds flows of typed steps, walks them interactively and keeps per-step analytics.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd.Context())
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errw)

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.catalog, "catalog", envOr("STEPFLOW_CATALOG", ""), "Flow catalog YAML merged over the built-in templates (env STEPFLOW_CATALOG)")
	pf.StringVar(&a.opts.trace, "trace", envOr("STEPFLOW_TRACE", ""), "Append run events to this JSONL trace file (env STEPFLOW_TRACE)")
	pf.StringVar(&a.opts.report, "report", envOr("STEPFLOW_REPORT", string(report.FormatText)), "Report format: text, table, markdown or yaml (env STEPFLOW_REPORT)")
	pf.StringVar(&a.opts.logLevel, "log-level", envOr("STEPFLOW_LOG_LEVEL", "warn"), "Log level: debug, info, warn or error (env STEPFLOW_LOG_LEVEL)")
	pf.StringVar(&a.opts.dir, "dir", envOr("STEPFLOW_DIR", ""), "Directory output steps write to (env STEPFLOW_DIR)")

	root.AddCommand(
		newMenuCmd(a),
		newRunCmd(a),
		newValidateCmd(a),
		newSchemaCmd(a),
		newTemplatesCmd(a),
		newTraceCmd(a),
		newDiagramCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup resolves the persistent flags.
func (a *app) setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.opts.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.opts.logLevel, err)
	}
	a.logger = slog.New(slog.NewTextHandler(a.errw, &slog.HandlerOptions{Level: level}))

	format, err := report.ParseFormat(a.opts.report)
	if err != nil {
		return err
	}
	a.format = format
	return nil
}

// loadCatalog returns the built-in catalog, merged with path when given.
func (a *app) loadCatalog(path string) (*schema.Catalog, error) {
	base := schema.Default()
	if path == "" {
		return base, nil
	}
	c, errs := schema.ValidateFile(path)
	printValidationWarnings(a.errw, errs)
	if schema.HasErrors(errs) {
		printValidationErrors(a.errw, errs)
		return nil, fmt.Errorf("catalog %s: validation failed with %d error(s)", path, countValidationErrors(errs))
	}
	a.logger.Debug("catalog loaded", slog.String("path", path), slog.Int("templates", len(c.Templates)))
	return schema.Merge(base, c), nil
}

// console opens the interactive prompter. completions are offered on tab.
func (a *app) console(completions ...string) (*prompt.Console, error) {
	if a.in != nil {
		c := prompt.NewReaderConsole(a.in, a.out)
		c.SetErrorOutput(a.errw)
		return c, nil
	}
	return prompt.NewConsole(completions...)
}

// runFlow executes f once and prints its analytics report.
func (a *app) runFlow(ctx context.Context, f *flow.Flow, p flow.Prompter, input step.LineReader) error {
	observers := []flow.Observer{flow.NewLoggingObserver(a.logger)}
	if a.opts.trace != "" {
		tw, err := trace.NewFileWriter(a.opts.trace)
		if err != nil {
			return err
		}
		defer func() {
			if err := tw.Err(); err != nil {
				a.logger.Warn("trace write failed", slog.String("path", a.opts.trace), slog.Any("error", err))
			}
			tw.Close()
		}()
		observers = append(observers, tw)
	}

	_, runErr := f.Run(ctx, flow.RunConfig{
		Prompter: p,
		Stdout:   a.out,
		Stderr:   a.errw,
		Input:    input,
		Dir:      a.opts.dir,
		Observer: flow.NewCompositeObserver(observers...),
	})
	if runErr != nil {
		fmt.Fprintf(a.errw, "Run aborted: %v\n", runErr)
	}
	if err := report.Render(a.out, f.Report(), a.format); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// templateFlow builds a flow from "[catalog.yaml] <template>" arguments.
// With a single argument the template comes from --catalog or the
// built-in catalog.
func (a *app) templateFlow(args []string) (*flow.Flow, error) {
	path, name := a.opts.catalog, args[0]
	if len(args) == 2 {
		path, name = args[0], args[1]
	}
	c, err := a.loadCatalog(path)
	if err != nil {
		return nil, err
	}
	tpl, ok := c.Template(name)
	if !ok {
		return nil, fmt.Errorf("template %q not found (available: %s)", name, strings.Join(c.Names(), ", "))
	}
	f := flow.New(name)
	if err := tpl.Build(f); err != nil {
		return nil, err
	}
	return f, nil
}

// --- run ---

func newRunCmd(a *app) *cobra.Command {
	var answers string
	cmd := &cobra.Command{
		Use:   "run [catalog.yaml] <template>",
		Short: "Build a flow from a template and run it once",
		Long: "Build a flow from a catalog template and walk it interactively. With one\n" +
			"argument the template is looked up in --catalog and the built-in templates.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.templateFlow(args)
			if err != nil {
				return err
			}

			if answers != "" {
				script, err := prompt.LoadScriptFile(answers)
				if err != nil {
					return err
				}
				script.SetErrorOutput(a.errw)
				return a.runFlow(cmd.Context(), f, script, script)
			}
			console, err := a.console()
			if err != nil {
				return err
			}
			defer console.Close()
			return a.runFlow(cmd.Context(), f, console, console)
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "Answer prompts from this YAML file instead of the terminal")
	return cmd
}

// --- validate ---

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalog.yaml>",
		Short: "Validate a flow catalog against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, errs := schema.ValidateFile(args[0])
			printValidationWarnings(a.errw, errs)
			if schema.HasErrors(errs) {
				n := countValidationErrors(errs)
				fmt.Fprintf(a.errw, "Validation failed: %d error(s)\n\n", n)
				printValidationErrors(a.errw, errs)
				return fmt.Errorf("validation failed with %d error(s)", n)
			}
			steps := 0
			for _, t := range c.Templates {
				steps += len(t.Steps)
			}
			fmt.Fprintf(a.out, "✓ %s is valid (%d templates, %d steps)\n", args[0], len(c.Templates), steps)
			return nil
		},
	}
}

func countValidationErrors(errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

func printValidationErrors(w io.Writer, errs []*schema.ValidationError) {
	i := 0
	for _, e := range errs {
		if e.Severity == "warning" {
			continue
		}
		i++
		fmt.Fprintf(w, "  %d. [%s] %s\n", i, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(w, "     at: %s\n", e.Path)
		}
	}
}

func printValidationWarnings(w io.Writer, errs []*schema.ValidationError) {
	for _, e := range errs {
		if e.Severity != "warning" {
			continue
		}
		fmt.Fprintf(w, "  ⚠ [%s] %s\n", e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(w, "    at: %s\n", e.Path)
		}
	}
}

// --- schema ---

func newSchemaCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the flow catalog JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := schema.GenerateJSONSchema()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}
			fmt.Fprintf(a.out, "Schema written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the schema to this file")
	return cmd
}

// --- templates ---

func newTemplatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates [catalog.yaml]",
		Short: "List the flow templates available to create and run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.catalog
			if len(args) == 1 {
				path = args[0]
			}
			c, err := a.loadCatalog(path)
			if err != nil {
				return err
			}
			for _, t := range c.Templates {
				fmt.Fprintf(a.out, "- %s (%d steps)", t.Name, len(t.Steps))
				if t.Description != "" {
					fmt.Fprintf(a.out, ": %s", t.Description)
				}
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
}

// --- diagram ---

func newDiagramCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diagram [catalog.yaml] <template>",
		Short: "Draw a template's flow as a Mermaid or ASCII diagram",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.templateFlow(args)
			if err != nil {
				return err
			}
			out, err := diagram.Generate(f, diagram.Format(format))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.out, out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(diagram.FormatASCII), "Diagram format: ascii or mermaid")
	return cmd
}

// --- version ---

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "stepflow %s (commit %s)\n", version, commit)
		},
	}
}
