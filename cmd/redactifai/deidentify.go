package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ssgrummons/RedactifAI/internal/config"
	"github.com/ssgrummons/RedactifAI/internal/deid"
	"github.com/ssgrummons/RedactifAI/internal/docio"
	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/mask"
	"github.com/ssgrummons/RedactifAI/internal/match"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
	"github.com/ssgrummons/RedactifAI/internal/phi"
)

// deidentifyCmd masks PHI in one or more documents
var deidentifyCmd = &cobra.Command{
	Use:   "deidentify [files...]",
	Short: "Mask PHI in scanned documents",
	Long: `Produce masked copies of scanned medical documents.

Each input is processed independently: OCR extracts word geometry, the
PHI detector reports character-offset annotations over the document
text, the two are reconciled into mask rectangles, and the rectangles
are painted opaquely onto fresh page images.

Examples:
  # Mask a single TIFF
  redactifai deidentify scan.tiff

  # Mask several documents concurrently with a custom output directory
  redactifai deidentify --output ./masked a.tiff b.pdf c.png

  # Limited dataset masking with a local pattern detector
  redactifai deidentify --masking-level LIMITED_DATASET --phi-provider pattern scan.tiff`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDeidentify,
}

func init() {
	rootCmd.AddCommand(deidentifyCmd)

	deidentifyCmd.Flags().String("output", "", "output directory (default: alongside inputs)")
	deidentifyCmd.Flags().String("format", "auto", "input format: tiff, png, pdf, or auto")
	deidentifyCmd.Flags().String("masking-level", "", "masking level: SAFE_HARBOR, LIMITED_DATASET, CUSTOM")
	deidentifyCmd.Flags().String("ocr-provider", "", "OCR provider: anthropic, openai, google, ollama")
	deidentifyCmd.Flags().String("phi-provider", "", "PHI provider: anthropic, openai, ollama, pattern")
	deidentifyCmd.Flags().Bool("debug", false, "render translucent annotated masks instead of opaque fills")
	deidentifyCmd.Flags().Int("workers", 0, "max documents processed concurrently")
}

func runDeidentify(cmd *cobra.Command, args []string) error {
	// Explicit flags are pushed into the environment before loading so
	// they take the top spot in the precedence chain.
	applyFlagOverrides(cmd)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return err
	}
	log := logger.Get()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}

	outputDir, _ := cmd.Flags().GetString("output")
	formatTag, _ := cmd.Flags().GetString("format")
	level, err := phi.ParseMaskingLevel(cfg.MaskingLevel)
	if err != nil {
		return err
	}

	start := time.Now()
	results := make([]*deid.Result, len(args))

	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(cfg.Workers))

	for i, path := range args {
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			result, err := processFile(groupCtx, svc, path, outputDir, formatTag, level)
			results[i] = result
			return err
		})
	}

	err = group.Wait()
	printBatchSummary(results, time.Since(start))
	return err
}

// applyFlagOverrides maps explicitly set flags onto the config's
// environment keys
func applyFlagOverrides(cmd *cobra.Command) {
	overrides := map[string]string{
		"masking-level": "REDACTIFAI_MASKING_LEVEL",
		"ocr-provider":  "REDACTIFAI_OCR_PROVIDER",
		"phi-provider":  "REDACTIFAI_PHI_PROVIDER",
		"workers":       "REDACTIFAI_WORKERS",
	}
	for flag, env := range overrides {
		if cmd.Flags().Changed(flag) {
			value, _ := cmd.Flags().GetString(flag)
			if flag == "workers" {
				workers, _ := cmd.Flags().GetInt(flag)
				value = fmt.Sprintf("%d", workers)
			}
			_ = os.Setenv(env, value)
		}
	}
	if cmd.Flags().Changed("debug") {
		debug, _ := cmd.Flags().GetBool("debug")
		_ = os.Setenv("REDACTIFAI_DEBUG_MODE", fmt.Sprintf("%t", debug))
	}
}

// buildService assembles the pipeline from configuration
func buildService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*deid.Service, error) {
	loader := docio.NewLoader(cfg.RenderDPI, log)

	ocrModel := cfg.OCR.Model
	if ocrModel == "" {
		ocrModel = ocr.DefaultModel(ocr.ProviderType(cfg.OCR.Provider))
	}
	phiModel := cfg.PHI.Model
	if phiModel == "" {
		phiModel = phi.DefaultModel(phi.ProviderType(cfg.PHI.Provider))
	}

	ocrProvider, err := ocr.NewProvider(ctx, &ocr.ClientConfig{
		Provider:          ocr.ProviderType(cfg.OCR.Provider),
		Model:             ocrModel,
		Endpoint:          cfg.OCR.Endpoint,
		APIKey:            cfg.OCR.APIKey,
		MaxRetries:        cfg.OCR.MaxRetries,
		RequestsPerSecond: cfg.OCR.RequestsPerSecond,
	}, deid.NewRenderer(loader, cfg.MaxOCRSizeMB), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR provider: %w", err)
	}

	phiProvider, err := phi.NewProvider(&phi.ClientConfig{
		Provider:         phi.ProviderType(cfg.PHI.Provider),
		Model:            phiModel,
		Endpoint:         cfg.PHI.Endpoint,
		APIKey:           cfg.PHI.APIKey,
		MaxRetries:       cfg.PHI.MaxRetries,
		MaxInputChars:    cfg.PHI.MaxInputChars,
		CustomCategories: cfg.CustomCategories,
		DictionaryTerms:  cfg.Dictionary,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create PHI provider: %w", err)
	}

	rgb, err := config.ParseMaskColor(cfg.MaskColor)
	if err != nil {
		return nil, err
	}

	return deid.NewService(&deid.Config{
		Logger:      log,
		Loader:      loader,
		OCRProvider: ocrProvider,
		PHIProvider: phiProvider,
		Match: match.Config{
			ConfidenceThreshold:  cfg.ConfidenceThreshold,
			PaddingPx:            float64(cfg.PaddingPx),
			FuzzyEntityThreshold: cfg.FuzzyEntityThreshold,
			MinSimilarityRatio:   cfg.MinSimilarityRatio,
			MergeAdjacent:        true,
		},
		Paint: mask.Config{
			Color:     color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255},
			DebugMode: cfg.DebugMode,
		},
		FuzzyWordThreshold: cfg.FuzzyWordThreshold,
	})
}

// processFile runs one document through the pipeline and writes the result
func processFile(ctx context.Context, svc *deid.Service, path, outputDir, formatTag string, level phi.MaskingLevel) (*deid.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tag := formatTag
	if tag == "auto" {
		if byExt, err := formatFromExtension(path); err == nil {
			tag = string(byExt)
		}
	}

	result, err := svc.Deidentify(ctx, data, tag, level)
	if err != nil {
		return result, fmt.Errorf("%s: %w", path, err)
	}

	outPath := maskedPath(path, outputDir)
	if err := os.WriteFile(outPath, result.MaskedDocument, 0600); err != nil {
		return result, fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	logger.Get().WithDocumentID(result.DocumentID).WithFields("input", path, "output", outPath).Info("Wrote masked document")
	return result, nil
}

// formatFromExtension maps a file extension to a document format
func formatFromExtension(path string) (docio.Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return docio.ParseFormat(ext)
}

// maskedPath derives the output path for a masked document
func maskedPath(path, outputDir string) string {
	dir := filepath.Dir(path)
	if outputDir != "" {
		dir = outputDir
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+".masked"+ext)
}

// printBatchSummary prints per-document outcomes and totals
func printBatchSummary(results []*deid.Result, elapsed time.Duration) {
	succeeded, failed := 0, 0
	totalRegions, totalUnmatched := 0, 0

	for _, r := range results {
		if r == nil {
			failed++
			continue
		}
		if r.Status == deid.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
		totalRegions += r.RegionsProduced
		totalUnmatched += r.EntitiesUnmatched
	}

	fmt.Printf("De-identification Summary:\n")
	fmt.Printf("  Documents: %d\n", len(results))
	fmt.Printf("  Succeeded: %d\n", succeeded)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Regions painted: %d\n", totalRegions)
	fmt.Printf("  Entities unmatched: %d\n", totalUnmatched)
	fmt.Printf("  Duration: %v\n", elapsed)
}
