package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quenito/internal/automation"
	"quenito/internal/browser"
	"quenito/internal/classifier"
	"quenito/internal/confidence"
	"quenito/internal/config"
	"quenito/internal/knowledge"
	"quenito/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Run flags
	surveyURL     string
	headless      bool
	maxIterations int

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "quenito",
	Short: "Quenito - confidence-gated survey automation for one persona",
	Long: `Quenito drives online surveys in a real browser, answering questions it is
confident about from a fixed persona and handing everything else to you.

Every outcome feeds a self-calibrating knowledge base: thresholds drop for
question types it keeps getting right, rise where it fails, and the working
interaction strategy per question shape is remembered.

Run without arguments to start the interactive session menu.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if lvl, lerr := zapcore.ParseLevel(cfg.Logging.Level); lerr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if cfg.Logging.File != "" {
			zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.Logging.File)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cwd, err := os.Getwd()
		if err == nil {
			if lerr := logging.Initialize(cwd); lerr != nil {
				logger.Warn("category logging unavailable", zap.Error(lerr))
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveMenu(cmd.Context())
	},
}

// runCmd executes one non-interactive survey run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automation loop against a survey URL",
	Long: `Opens the survey in a browser and drives it to completion:
  1. Check every page for completion before anything else
  2. Classify the question and score confidence against the learned threshold
  3. Automate confident questions through the strategy chain
  4. Escalate the rest to you on the terminal
  5. Record every outcome into the knowledge base`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if surveyURL == "" {
			return fmt.Errorf("--url is required")
		}
		return runSurvey(cmd.Context(), surveyURL)
	},
}

// reportCmd prints the intelligence report.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show per-type and per-strategy learning statistics",
	RunE:  runReport,
}

// knowledgeCmd inspects the knowledge document.
var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge base",
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the knowledge document",
	RunE:  runKnowledgeShow,
}

var knowledgePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the knowledge document path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Knowledge.Path)
		return nil
	},
}

// calibrateCmd rebuilds thresholds from the learning log.
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Recompute thresholds and strategy preferences from the learning log",
	Long: `Replays the full learning log to rebuild per-type calibration and strategy
preferences. Useful after hand-editing question patterns or the persona.`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to quenito.yaml")

	runCmd.Flags().StringVar(&surveyURL, "url", "", "survey URL to run")
	runCmd.Flags().BoolVar(&headless, "headless", false, "run the browser headless")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override the iteration cap")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgePathCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(calibrateCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromWorkspace(cwd)
}

// openKnowledge opens the store with its archive attached.
func openKnowledge(cfg *config.Config) (*knowledge.Store, *knowledge.Archive, error) {
	store, err := knowledge.Open(cfg.Knowledge.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open knowledge base: %w", err)
	}

	archive, err := knowledge.OpenArchive(cfg.Knowledge.ArchivePath)
	if err != nil {
		logger.Warn("learning archive unavailable", zap.Error(err))
		return store, nil, nil
	}
	store.AttachArchive(archive)
	return store, archive, nil
}

// runSurvey wires the full stack and drives one survey.
func runSurvey(ctx context.Context, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if maxIterations > 0 {
		cfg.Automation.MaxIterations = maxIterations
	}

	store, archive, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
	}
	store.SetSnippetLimit(cfg.Automation.QuestionSnippetLen)

	if cfg.Knowledge.WatchExternalEdits {
		if watcher, werr := knowledge.Watch(store); werr != nil {
			logger.Warn("knowledge watcher unavailable", zap.Error(werr))
		} else {
			defer watcher.Close()
		}
	}

	mgr := browser.NewSessionManager(cfg.Browser, cfg.GetNavigationTimeout())
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Shutdown(context.Background())

	page, err := mgr.OpenSurvey(ctx, url)
	if err != nil {
		return fmt.Errorf("open survey: %w", err)
	}

	orch := automation.New(
		page,
		store,
		classifier.New(store, classifier.Config{}),
		confidence.New(store),
		automation.NewConsoleIntervenor(),
		automation.Config{
			MaxIterations: cfg.Automation.MaxIterations,
			PageSettle:    cfg.GetPageSettle(),
		},
	)

	logger.Info("starting survey run", zap.String("url", url))
	stats, err := orch.Run(ctx)
	if stats != nil {
		fmt.Println()
		fmt.Println(stats.Render())
	}
	if err != nil {
		return fmt.Errorf("survey run: %w", err)
	}

	// Leave the browser up until the human has seen the final page.
	fmt.Print("Press Enter to close the browser...")
	fmt.Scanln()
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	archive, err := knowledge.OpenArchive(cfg.Knowledge.ArchivePath)
	if err != nil {
		return fmt.Errorf("open learning archive: %w", err)
	}
	defer archive.Close()

	typeStats, err := archive.TypeReport()
	if err != nil {
		return err
	}
	strategyStats, err := archive.StrategyReport()
	if err != nil {
		return err
	}

	store, err := knowledge.Open(cfg.Knowledge.Path)
	if err != nil {
		return err
	}

	fmt.Println("Question type performance")
	fmt.Println("=========================")
	if len(typeStats) == 0 {
		fmt.Println("(no learning events recorded yet)")
	}
	for _, s := range typeStats {
		rate := 0.0
		if s.Total > 0 {
			rate = float64(s.Automated) / float64(s.Total) * 100
		}
		fmt.Printf("%-20s seen=%-4d automated=%-4d manual=%-4d failed=%-4d rate=%.0f%% threshold=%.2f\n",
			s.QuestionType, s.Total, s.Automated, s.Manual, s.Failed, rate, store.Threshold(s.QuestionType))
	}

	if len(strategyStats) > 0 {
		fmt.Println()
		fmt.Println("Strategy performance")
		fmt.Println("====================")
		for _, s := range strategyStats {
			fmt.Printf("%-18s %-10s attempts=%-4d successes=%-4d avg=%.2fs\n",
				s.Strategy, s.ElementType, s.Total, s.Successes, s.AvgExecTime)
		}
	}

	fmt.Println()
	for qtype, cal := range store.CalibrationStats() {
		fmt.Printf("%-20s trending=%s adjustment=%+.3f\n", qtype, cal.Trending, cal.DynamicAdjustment)
	}
	return nil
}

func runKnowledgeShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(cfg.Knowledge.Path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("no knowledge base at %s yet (first run creates it)\n", cfg.Knowledge.Path)
			return nil
		}
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := knowledge.Open(cfg.Knowledge.Path)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := store.Recalibrate(); err != nil {
		return err
	}

	fmt.Printf("Recalibrated %d question types from %d events in %v\n",
		len(store.CalibrationStats()), len(store.Events()), time.Since(start).Round(time.Millisecond))
	for qtype, cal := range store.CalibrationStats() {
		fmt.Printf("  %-20s threshold=%.2f trending=%s\n", qtype, store.Threshold(qtype), cal.Trending)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
