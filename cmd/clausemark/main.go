package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/config"
	"github.com/coolbeans/clausemark/pkg/highlight"
	"github.com/coolbeans/clausemark/pkg/logging"
	"github.com/coolbeans/clausemark/pkg/risk"
	"github.com/coolbeans/clausemark/pkg/store"
	"github.com/coolbeans/clausemark/pkg/watch"
)

var version = "0.1.0"

// app carries what every subcommand needs once the root flags are parsed.
type app struct {
	configPath string
	logMode    string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "clausemark",
		Short: "Highlight AI-identified risks in contract text",
		Long: `Clausemark locates the risk excerpts reported by an analysis model
inside the original document text and renders them as highlights.

It works on analysis payloads (JSON) and produces:
  - A lossless partition of the document into plain and risk segments
  - Self-contained HTML pages with clickable highlights
  - A side list of risks, flagging those that could not be located`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logMode, "log-mode", "", "Log mode: development, production or nop")

	rootCmd.AddCommand(alignCmd(a))
	rootCmd.AddCommand(renderCmd(a))
	rootCmd.AddCommand(risksCmd(a))
	rootCmd.AddCommand(storeCmd(a))
	rootCmd.AddCommand(watchCmd(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logMode != "" {
		cfg.Log.Mode = a.logMode
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) aligner() *align.Aligner {
	opts := append(a.cfg.AlignerOptions(), align.WithLogger(a.logger.Named("align")))
	return align.New(opts...)
}

func (a *app) session(result *risk.AnalysisResult, extra ...highlight.SessionOption) *highlight.Session {
	opts := append(a.cfg.SessionOptions(), extra...)
	return highlight.NewSession(result, a.aligner(), opts...)
}

func readAnalysis(path string) (*risk.AnalysisResult, error) {
	if path == "" {
		return nil, fmt.Errorf("--input is required")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis: %w", err)
	}

	return risk.DecodeAnalysis(data)
}

func alignCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Partition a document into plain and risk segments",
		Long: `Align the risk excerpts of an analysis payload against its full text
and print the resulting segment partition.

Example:
  clausemark align --input lease.json
  clausemark align --input lease.json --format json --verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			format, _ := cmd.Flags().GetString("format")
			verify, _ := cmd.Flags().GetBool("verify")

			result, err := readAnalysis(input)
			if err != nil {
				return err
			}

			alignment := a.aligner().Align(result.Text(), result.Records)
			if verify {
				if err := align.Verify(result.Text(), alignment.Segments); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(alignment)
			case "table", "":
				printAlignment(out, alignment, verify)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}

	cmd.Flags().StringP("input", "i", "", "Analysis payload (JSON), - for stdin")
	cmd.Flags().StringP("format", "f", "table", "Output format: table or json")
	cmd.Flags().Bool("verify", false, "Check that the segments reproduce the document text")

	return cmd
}

func printAlignment(out io.Writer, alignment *align.Alignment, verified bool) {
	fmt.Fprintf(out, "%-7s %-7s %-5s %-7s %-13s %s\n", "START", "END", "RISK", "LEVEL", "STRATEGY", "TEXT")
	for _, segment := range alignment.Segments {
		riskID := "-"
		if !segment.IsPlain() {
			riskID = fmt.Sprintf("%d", segment.RiskID)
		}
		level := string(segment.Level)
		if level == "" {
			level = "-"
		}
		strategy := segment.Strategy
		if strategy == "" {
			strategy = "-"
		}
		fmt.Fprintf(out, "%-7d %-7d %-5s %-7s %-13s %q\n",
			segment.Start, segment.End, riskID, level, strategy, truncate(segment.Text, 48))
	}

	fmt.Fprintf(out, "\nSegments: %d  Matched: %d  Unmatched: %d  Skipped: %d\n",
		len(alignment.Segments), len(alignment.Matched), len(alignment.Unmatched), len(alignment.Skipped))
	if len(alignment.Unmatched) > 0 {
		fmt.Fprintf(out, "Not located: %s\n", joinInts(alignment.Unmatched))
	}
	if verified {
		fmt.Fprintln(out, "Partition verified")
	}
}

func renderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an analysis as an HTML page",
		Long: `Render the document text with highlighted risks and a side list as a
self-contained HTML page. Without full text, excerpts are rendered as blocks.

Example:
  clausemark render --input lease.json --output lease.html
  clausemark render --input lease.json --active 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			output, _ := cmd.Flags().GetString("output")
			active, _ := cmd.Flags().GetInt("active")
			title, _ := cmd.Flags().GetString("title")

			result, err := readAnalysis(input)
			if err != nil {
				return err
			}

			session := a.session(result)
			if active > 0 {
				plan := session.SelectRisk(active)
				if plan.TargetID == "" {
					a.logger.Info("selected risk has no highlight", zap.Int("risk_id", active))
				}
			}

			if title == "" {
				title = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
				if input == "-" || title == "" {
					title = "Risk analysis"
				}
			}
			page := session.Page(title)

			if output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), page)
				return err
			}
			if err := os.WriteFile(output, []byte(page), 0644); err != nil {
				return fmt.Errorf("failed to write page: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d risks to %s\n", len(result.Records), output)
			if unmatched := session.Unmatched(); len(unmatched) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d not located in document\n", len(unmatched))
			}
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Analysis payload (JSON), - for stdin")
	cmd.Flags().StringP("output", "o", "", "Output HTML file (default stdout)")
	cmd.Flags().Int("active", 0, "Risk id to mark active")
	cmd.Flags().String("title", "", "Page title (default input file name)")

	return cmd
}

func risksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "List the risks of an analysis",
		Long: `List the risks of an analysis as they appear in the side list, flagging
those that could not be located in the document text.

Example:
  clausemark risks --input lease.json --level high`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			level, _ := cmd.Flags().GetString("level")

			filter, err := risk.ParseFilter(level)
			if err != nil {
				return err
			}

			result, err := readAnalysis(input)
			if err != nil {
				return err
			}

			session := a.session(result)
			session.SetFilter(filter)

			out := cmd.OutOrStdout()
			counts := risk.CountByLevel(result.Records)
			fmt.Fprintf(out, "Risks: %d (%d high, %d medium, %d low)\n",
				len(result.Records), counts[risk.LevelHigh], counts[risk.LevelMedium], counts[risk.LevelLow])
			if banner := session.Banner(); banner != "" {
				fmt.Fprintf(out, "%s\n", banner)
			}
			fmt.Fprintln(out)

			for _, entry := range session.VisibleRisks() {
				location := entry.Strategy
				if session.Fallback() {
					location = "block"
				} else if !entry.Matched {
					location = "not located"
				}
				fmt.Fprintf(out, "  [%d] %-6s %-13s %s\n", entry.ID, entry.Level, location, truncate(entry.Text, 60))
				fmt.Fprintf(out, "       %s\n", entry.Explanation)
				fmt.Fprintf(out, "       -> %s\n", entry.Recommendation)
			}
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Analysis payload (JSON), - for stdin")
	cmd.Flags().StringP("level", "l", "all", "Filter by level: all, high, medium or low")

	return cmd
}

func storeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage persisted analyses",
	}
	cmd.PersistentFlags().String("dir", "", "Store directory (default from config)")

	open := func(cmd *cobra.Command) (*store.FileStore, error) {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = a.cfg.Store.Dir
		}
		return store.NewFileStore(dir)
	}

	putCmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Save an analysis payload under an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read analysis: %w", err)
			}

			fileStore, err := open(cmd)
			if err != nil {
				return err
			}
			if err := fileStore.Put(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s\n", args[0], fileStore.Dir())
			return nil
		},
	}
	putCmd.Flags().StringP("input", "i", "", "Analysis payload (JSON)")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored analysis payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileStore, err := open(cmd)
			if err != nil {
				return err
			}
			data, err := fileStore.GetRaw(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analysis ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileStore, err := open(cmd)
			if err != nil {
				return err
			}
			ids, err := fileStore.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileStore, err := open(cmd)
			if err != nil {
				return err
			}
			if err := fileStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(putCmd, getCmd, listCmd, deleteCmd)
	return cmd
}

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render pages as analysis payloads change",
		Long: `Watch a directory of analysis payloads and keep an HTML page per payload
up to date. Pages are removed when their payload is deleted.

Example:
  clausemark watch --dir analyses --output pages`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			output, _ := cmd.Flags().GetString("output")
			if dir == "" {
				dir = a.cfg.Store.Dir
			}

			watcher, err := watch.NewWatcher(dir, a.aligner(),
				watch.WithOutputDir(output),
				watch.WithLogger(a.logger.Named("watch")),
				watch.WithCache(store.NewSegmentCache(a.cfg.Store.CacheTTL)),
				watch.WithSessionOptions(a.cfg.SessionOptions()...),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := watcher.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)

			<-ctx.Done()
			return watcher.Stop()
		},
	}

	cmd.Flags().StringP("dir", "d", "", "Directory of analysis payloads (default from config)")
	cmd.Flags().StringP("output", "o", "", "Directory for rendered pages (default same as --dir)")

	return cmd
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes-3]) + "..."
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = fmt.Sprintf("%d", value)
	}
	return strings.Join(parts, ", ")
}
