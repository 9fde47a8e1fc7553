package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dnguyen/fintext/internal/anomaly"
	"github.com/dnguyen/fintext/internal/cache"
	"github.com/dnguyen/fintext/internal/category"
	"github.com/dnguyen/fintext/internal/config"
	"github.com/dnguyen/fintext/internal/domain"
	"github.com/dnguyen/fintext/internal/llm"
	"github.com/dnguyen/fintext/internal/logger"
	"github.com/dnguyen/fintext/internal/parser"
	"github.com/dnguyen/fintext/internal/promptbuild"
	"github.com/dnguyen/fintext/internal/rawstore"
	"github.com/dnguyen/fintext/internal/ruleparse"
)

var (
	configPath string
	offline    bool
	noCache    bool
)

func main() {
	root := &cobra.Command{
		Use:   "fintext",
		Short: "Parse Vietnamese/English transaction text into structured drafts",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("FINTEXT_CONFIG"), "path to YAML config")

	parseCmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse free text into transaction drafts",
		Long: "Parses transaction text using the configured language model with the full\n" +
			"recovery pipeline, or the offline rule extractor with --offline.\n" +
			"Reads stdin when no text argument is given.",
		RunE: runParse,
	}
	parseCmd.Flags().BoolVar(&offline, "offline", false, "use the rule extractor only, no model call")
	parseCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	root.AddCommand(parseCmd)

	rawCmd := &cobra.Command{
		Use:   "raw [date] [run-id]",
		Short: "Print the archived raw model output of a degraded parse run",
		Long: "Fetches the raw model response archived for the given run from the\n" +
			"configured raw output bucket. Date is the run's UTC date, yyyy-mm-dd.",
		Args: cobra.ExactArgs(2),
		RunE: runRaw,
	}
	root.AddCommand(rawCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runParse(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("no input text: pass it as an argument or on stdin")
	}

	result, err := parseText(text)
	if err != nil {
		return err
	}

	render(result)
	return nil
}

func runRaw(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.RawOutputBucket == "" {
		return fmt.Errorf("raw_output_bucket is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	archiver, err := rawstore.NewArchiver(ctx, cfg.RawOutputBucket)
	if err != nil {
		return err
	}
	defer archiver.Close()

	data, err := archiver.Fetch(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func parseText(text string) (*domain.ParseResult, error) {
	log := logger.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if offline || len(cfg.APIKeys) == 0 {
		if !offline {
			fmt.Fprintln(os.Stderr, "No API keys configured, falling back to rule extraction.")
		}
		return offlineResult(text), nil
	}

	var client llm.Client
	switch cfg.LLMProvider {
	case "anthropic":
		client = llm.NewAnthropicClient(cfg.LLMModel)
	default:
		client = llm.NewGeminiClient(cfg.LLMModel)
	}

	var store cache.Store = cache.NewMemory()
	if cfg.CachePath != "" {
		if bolt, berr := cache.NewBolt(cfg.CachePath, log); berr == nil {
			store = bolt
		}
	}
	defer store.Close()

	categories := category.DefaultTaxonomy()
	svc := parser.NewService(parser.Deps{
		Scheduler:  llm.NewScheduler(cfg.APIKeys, cfg.RequestsPerSecond, cfg.MaxConcurrent, log),
		Client:     client,
		Prompts:    promptbuild.NewBuilder(),
		Matcher:    category.NewMatcher(categories),
		Detector:   anomaly.NewDetector(nil, cfg.LargeAmountThreshold, log),
		Cache:      store,
		Categories: categories,
		Log:        log,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return svc.Parse(ctx, &domain.ParseRequest{Text: text, DisableCache: noCache})
}

// offlineResult runs the rule extractor alone, matching what the
// recovery chain's last strategy would produce with full confidence.
func offlineResult(text string) *domain.ParseResult {
	result := &domain.ParseResult{
		Transactions: ruleparse.Extract(text),
		Summary:      "Parsed offline by keyword rules",
	}
	result.Metadata.Method = "rule_offline"
	result.Metadata.Recompute(result.Transactions)
	return result
}

var (
	expenseColor  = color.New(color.FgRed)
	incomeColor   = color.New(color.FgGreen)
	transferColor = color.New(color.FgCyan)
	warnColor     = color.New(color.FgYellow)
	dimColor      = color.New(color.Faint)
)

func render(result *domain.ParseResult) {
	if len(result.Transactions) == 0 {
		fmt.Println("No transactions found.")
		if result.Summary != "" {
			dimColor.Println(result.Summary)
		}
		return
	}

	for i, d := range result.Transactions {
		tag := typeColor(d.Type).Sprintf("%-8s", d.Type)
		fmt.Printf("%2d. %s %12.0f₫  %s\n", i+1, tag, d.Amount, d.Description)

		if d.CategoryName != "" {
			dimColor.Printf("    category: %s", d.CategoryName)
			dimColor.Printf("  confidence: %.2f\n", d.Confidence)
		} else {
			dimColor.Printf("    confidence: %.2f\n", d.Confidence)
		}
		if d.Notes != "" {
			dimColor.Printf("    notes: %s\n", d.Notes)
		}
		for _, reason := range d.UnusualReasons {
			warnColor.Printf("    ! %s\n", reason)
		}
	}

	fmt.Println()
	m := result.Metadata
	fmt.Printf("%d transaction(s), method=%s, quality=%s, avg confidence %.2f\n",
		m.TotalFound, m.Method, m.QualityTier, m.AverageConfidence)
	for _, issue := range m.Issues {
		warnColor.Printf("issue: %s\n", issue)
	}
}

func typeColor(t domain.TransactionType) *color.Color {
	switch t {
	case domain.TypeIncome:
		return incomeColor
	case domain.TypeTransfer:
		return transferColor
	default:
		return expenseColor
	}
}
