// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hemebench/hemebench-mcp/internal/catalog"
	"github.com/hemebench/hemebench-mcp/internal/config"
	"github.com/hemebench/hemebench-mcp/internal/engine"
	"github.com/hemebench/hemebench-mcp/internal/interpret"
	"github.com/hemebench/hemebench-mcp/internal/report"
	"github.com/hemebench/hemebench-mcp/internal/report/parsers"
	"github.com/hemebench/hemebench-mcp/internal/tool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configFile string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "hemebench",
		Short:        "Rule-based hematology pattern interpreter",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a config file (HEMEBENCH_* env vars take precedence)")

	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.evaluateCmd())
	rootCmd.AddCommand(a.rangesCmd())
	rootCmd.AddCommand(a.validateCmd())
	rootCmd.AddCommand(a.caseCmd())
	rootCmd.AddCommand(a.glossaryCmd())
	rootCmd.AddCommand(a.mutationsCmd())
	return rootCmd
}

func (a *app) setup(logOut io.Writer) error {
	var err error
	if a.configFile != "" {
		a.cfg, err = config.LoadFile(a.configFile)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.log = a.cfg.Logger(logOut)
	return nil
}

func (a *app) engine() (*engine.Engine, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if a.cfg.Catalog != "" {
		cat, err = catalog.LoadFile(a.cfg.Catalog)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}
	return engine.New(cat, engine.WithLogger(a.log)), nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the interpreter as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{
				Name:    a.cfg.ServerName,
				Version: a.cfg.ServerVersion,
			}, nil)
			tool.Register(server, eng)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.log.Info().
				Str("name", a.cfg.ServerName).
				Str("version", a.cfg.ServerVersion).
				Int("rule_sets", len(eng.RuleSets())).
				Msg("serving MCP over stdio")
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			a.log.Info().Msg("server stopped")
			return nil
		},
	}
}

func (a *app) evaluateCmd() *cobra.Command {
	var (
		ruleSet string
		markers []string
		file    string
	)
	cmd := &cobra.Command{
		Use:   "evaluate [key=value ...]",
		Short: "Evaluate lab observations or a marker panel against a rule set",
		Example: "  hemebench evaluate hgb=9.5 mcv=72 platelets=420\n" +
			"  hemebench evaluate --set coagulation pt=16 ptt=30\n" +
			"  hemebench evaluate --markers CD34,CD19,CD10\n" +
			"  hemebench evaluate --file report.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if file != "" {
				if len(args) > 0 || cmd.Flags().Changed("markers") {
					return fmt.Errorf("--file cannot be combined with other observations")
				}
				return a.evaluateFile(cmd, eng, file, ruleSet)
			}

			if cmd.Flags().Changed("markers") {
				if len(args) > 0 {
					return fmt.Errorf("--markers cannot be combined with lab observations")
				}
				if ruleSet == "" {
					ruleSet = engine.FlowRuleSet
				}
				selected := interpret.NewMarkers(markers...)
				if selected.Len() == 0 {
					fmt.Fprintln(out, tool.NoSelectionMessage)
					return nil
				}
				interpretations, err := eng.EvaluateMarkers(ruleSet, selected)
				if err != nil {
					return err
				}
				printInterpretations(out, eng, ruleSet, interpretations, selected)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("at least one key=value observation is required")
			}
			labs, err := parseObservations(args)
			if err != nil {
				return err
			}
			if ruleSet == "" {
				ruleSet = engine.CBCRuleSet
			}
			interpretations, err := eng.EvaluateLabs(ruleSet, labs)
			if err != nil {
				return err
			}
			printInterpretations(out, eng, ruleSet, interpretations, labs)
			return nil
		},
	}
	cmd.Flags().StringVar(&ruleSet, "set", "", "Rule set id (default cbc, or flow with --markers)")
	cmd.Flags().StringSliceVar(&markers, "markers", nil, "Comma-separated marker panel, e.g. CD34,CD19,CD10")
	cmd.Flags().StringVar(&file, "file", "", "Lab report to import (markdown, YAML or JSON)")
	return cmd
}

// evaluateFile imports a report and interprets every part of it.
func (a *app) evaluateFile(cmd *cobra.Command, eng *engine.Engine, path, ruleSet string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report %q: %w", path, err)
	}
	result, err := parsers.NewDefaultPipeline().Run(cmd.Context(), report.Source{
		Content: data,
		Format:  strings.TrimPrefix(filepath.Ext(path), "."),
		ID:      path,
	})
	if err != nil {
		return err
	}
	for _, name := range result.Unmapped {
		a.log.Warn().Str("report", path).Str("line", name).Msg("unrecognized report line")
	}

	var ruleSets []string
	if ruleSet != "" {
		ruleSets = []string{ruleSet}
	}
	findings, err := eng.InterpretPanel(result.Labs, result.Markers(), ruleSets...)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return fmt.Errorf("report %q has no recognized observations", path)
	}
	out := cmd.OutOrStdout()
	for _, f := range findings {
		fmt.Fprintf(out, "[%s] %s\n", f.RuleSet, f.Summary)
	}
	return nil
}

func printInterpretations(w io.Writer, eng *engine.Engine, ruleSet string, interpretations []string, obs interpret.Observation) {
	if len(interpretations) == 0 {
		fmt.Fprintln(w, eng.Summarize(ruleSet, interpretations, obs))
		return
	}
	for _, line := range interpretations {
		fmt.Fprintf(w, "- %s\n", line)
	}
}

// parseObservations turns key=value arguments into a lab observation set.
func parseObservations(args []string) (interpret.Labs, error) {
	labs := make(interpret.Labs, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid observation %q: want key=value", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid value for %q: %q is not a finite number", key, raw)
		}
		if _, dup := labs[key]; dup {
			return nil, fmt.Errorf("duplicate observation %q", key)
		}
		labs[key] = v
	}
	return labs, nil
}

func (a *app) rangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges",
		Short: "List reference ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTEST\tLOW\tHIGH\tUNIT")
			for _, r := range eng.Catalog().RangeEntries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Key, r.Label,
					strconv.FormatFloat(r.Low, 'f', -1, 64),
					strconv.FormatFloat(r.High, 'f', -1, 64),
					r.Unit)
			}
			return tw.Flush()
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a catalog file (the embedded catalog when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cat    *catalog.Catalog
				err    error
				source = "embedded catalog"
			)
			if len(args) == 1 {
				source = args[0]
				cat, err = catalog.LoadFile(source)
			} else {
				cat, err = catalog.Default()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d ranges, %d rule sets, %d cases)\n",
				source, cat.Ranges.Len(), len(cat.RuleSets()), len(cat.Cases()))
			return nil
		},
	}
}

func (a *app) caseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "case <id>",
		Short: "Interpret a worked case through every applicable rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.InterpretCase(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", report.Case.ID, report.Case.Title)
			for _, f := range report.Findings {
				fmt.Fprintf(out, "[%s] %s\n", f.RuleSet, f.Summary)
			}
			fmt.Fprintf(out, "Diagnosis: %s\n", report.Case.Diagnosis)
			if report.Case.Mechanism != "" {
				fmt.Fprintf(out, "Mechanism: %s\n", report.Case.Mechanism)
			}
			printList(out, "Differential", report.Case.DifferentialDx)
			printList(out, "Management", report.Case.ManagementPoints)
			return nil
		},
	}
}

func printList(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
}

func (a *app) glossaryCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "glossary [query]",
		Short: "Search the hematology glossary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			entries := eng.Catalog().SearchGlossary(query, category)
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No matching terms")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s [%s]\n  %s\n", e.Term, e.Category, e.Definition)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Restrict to morphology, lab, molecular or clinical")
	return cmd
}

func (a *app) mutationsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "mutations",
		Short: "List molecular markers by disease category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GENE\tPATHWAY\tPROGNOSIS\tDISEASES")
			for _, m := range eng.Catalog().MutationsByCategory(category) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Gene, m.Pathway, m.Prognosis, strings.Join(m.Diseases, "; "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Disease category: AML, MPN, MDS, CML, ALL or Lymphoma")
	return cmd
}
