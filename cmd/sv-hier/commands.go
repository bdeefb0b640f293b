package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-hier/internal/analysis"
	"github.com/robert-at-pretension-io/sv-hier/internal/config"
	"github.com/robert-at-pretension-io/sv-hier/internal/facts"
	"github.com/robert-at-pretension-io/sv-hier/internal/logging"
	"github.com/robert-at-pretension-io/sv-hier/internal/validator"
)

type globalOptions struct {
	configPath string
	verbose    bool
	timingPath string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sv-hier",
		Short: "Build SystemVerilog module hierarchies from parsed module records",
		Long: `sv-hier reads module record JSON files, finds the top-level modules and
expands each into its instantiation tree.

Configuration is read from the first of:
  1. ./svhier.json
  2. ./.svhier.json
  3. <path>/svhier.json
  4. ~/.config/svhier/config.json

Run 'sv-hier init' to create a default configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: search standard locations)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().StringVar(&opts.timingPath, "timing", "", "write stage timings as JSON lines to this file")

	root.AddCommand(
		newInitCommand(),
		newTopCommand(opts),
		newTreeCommand(opts),
		newLintCommand(opts),
		newFactsCommand(opts),
	)
	return root
}

// session is the configuration and logger shared by the analysis commands.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (o *globalOptions) open(path string, stderr io.Writer) (*session, error) {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", o.configPath, err)
		}
		cfg = loaded
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: Could not load config: %v (using defaults)\n", err)
			loaded = config.DefaultConfig()
		}
		cfg = loaded
	}

	logCfg := cfg.Log
	if o.verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg, stderr)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) analyzer(o *globalOptions) *analysis.Analyzer {
	a := analysis.New(s.cfg, s.logger)
	a.TimingPath = o.timingPath
	return a
}

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a " + config.FileName + " configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := config.FileName
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
			}

			if err := config.DefaultConfig().Save(configPath); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - Record file patterns")
			fmt.Fprintln(out, "  - Top modules to expand")
			fmt.Fprintln(out, "  - Lint rule severities")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newTopCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "top <path>",
		Short: "List the modules no other module instantiates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a := s.analyzer(opts)
			a.SkipLint = true
			res, err := a.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res.Detected)
			}
			for _, name := range res.Detected {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON array")
	return cmd
}

func newTreeCommand(opts *globalOptions) *cobra.Command {
	var tops []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree <path>",
		Short: "Print the instantiation tree of each top module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a := s.analyzer(opts)
			a.Tops = tops
			a.SkipLint = !asJSON
			res, err := a.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeReport(cmd.OutOrStdout(), res.Report())
			}
			return renderForest(cmd.OutOrStdout(), res.Forest)
		},
	}
	cmd.Flags().StringArrayVar(&tops, "top", nil, "expand this module (repeatable; default: detected tops)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full JSON report")
	return cmd
}

func newLintCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lint <path>",
		Short: "Check records and hierarchy against the lint rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := s.analyzer(opts).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeReport(out, res.Report()); err != nil {
					return err
				}
			} else {
				renderLint(out, res)
			}
			if res.Lint.HasErrors() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full JSON report")
	return cmd
}

type factsOptions struct {
	output    string
	deltaFrom string
	deltaOut  string
	snapshot  string
	sources   []string
}

func newFactsCommand(opts *globalOptions) *cobra.Command {
	fo := &factsOptions{}
	cmd := &cobra.Command{
		Use:   "facts <path>",
		Short: "Export the hierarchy as relational fact tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fo.deltaFrom == "") != (fo.deltaOut == "") {
				return fmt.Errorf("--delta-from and --delta-out must be used together")
			}

			s, err := opts.open(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a := s.analyzer(opts)
			a.SkipLint = true
			res, err := a.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return runFacts(cmd.OutOrStdout(), res, fo)
		},
	}
	cmd.Flags().StringVarP(&fo.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	cmd.Flags().StringVar(&fo.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	cmd.Flags().StringVar(&fo.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	cmd.Flags().StringVar(&fo.snapshot, "snapshot", "", "print the delta since this snapshot, then update it")
	cmd.Flags().StringArrayVar(&fo.sources, "source", nil, "keep only rows declared in this source file (repeatable)")
	return cmd
}

func runFacts(out io.Writer, res *analysis.Result, fo *factsOptions) error {
	v, err := validator.NewFactsValidator()
	if err != nil {
		return err
	}

	var keep map[string]bool
	if len(fo.sources) > 0 {
		keep = make(map[string]bool, len(fo.sources))
		for _, src := range fo.sources {
			keep[src] = true
		}
	}

	// Deltas are taken over every row and then scoped, so baseline rows from
	// other sources never show up as removed.
	all := res.Facts()
	tables := all
	if keep != nil {
		tables = facts.FilterTablesByFiles(all, keep)
	}
	deltaFrom := func(prev facts.Tables) (facts.Delta, error) {
		delta := facts.ComputeDelta(prev, all)
		if keep != nil {
			delta = facts.FilterDeltaByFiles(delta, keep)
		}
		return delta, v.ValidateDelta(delta)
	}

	if err := v.Validate(tables); err != nil {
		return err
	}

	if fo.snapshot != "" {
		prev, ok, err := facts.LoadSnapshot(fo.snapshot)
		if err != nil {
			return err
		}
		if !ok {
			prev = facts.EmptyTables()
		}
		delta, err := deltaFrom(prev)
		if err != nil {
			return err
		}
		if err := writeJSON(out, delta); err != nil {
			return err
		}
		return facts.SaveSnapshot(fo.snapshot, tables)
	}

	if fo.output != "" {
		if err := writeJSONFile(fo.output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else if err := writeJSON(out, tables); err != nil {
		return fmt.Errorf("encoding facts: %w", err)
	}

	if fo.deltaFrom != "" {
		prev, err := readTables(fo.deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta, err := deltaFrom(prev)
		if err != nil {
			return err
		}
		if err := writeJSONFile(fo.deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func writeReport(w io.Writer, report analysis.Report) error {
	v, err := validator.NewOutputValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(report); err != nil {
		return err
	}
	return writeJSON(w, report)
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeJSONFile(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return writeJSON(f, data)
}
