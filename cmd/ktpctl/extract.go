package main

import (
	"SentraKTP/internal/config"
	ktpPkg "SentraKTP/pkg/ktp"
	"SentraKTP/pkg/log"
	"SentraKTP/pkg/utils"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"
)

// extractLine is one line of the extract command's JSON lines output.
type extractLine struct {
	File         string         `json:"file"`
	Data         *ktpPkg.Record `json:"data,omitempty"`
	Completeness float64        `json:"completeness"`
	DurationMs   int64          `json:"duration_ms"`
	Error        string         `json:"error,omitempty"`
}

func newExtractCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <image>...",
		Short: "Run OCR and field extraction on card images",
		Example: `  # Extract two cards with the configured engine
  ktpctl extract front.jpg scan.png

  # Use Google Vision with four concurrent requests
  ktpctl extract --engine vision --workers 4 cards/*.jpg > results.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExtract(cmd, args)
		},
	}

	cmd.Flags().String("engine", "", "OCR engine: tesseract, vision, rekognition or gemini (default KTP_OCR_ENGINE)")
	cmd.Flags().Int("workers", 0, "Concurrent extractions (default KTP_EXTRACT_WORKERS)")
	cmd.Flags().Duration("timeout", 0, "Per image timeout (default KTP_EXTRACT_TIMEOUT)")
	cmd.Flags().Float64("min-confidence", -1, "Drop tokens scored below this (default KTP_MIN_CONFIDENCE)")
	cmd.Flags().Bool("no-preprocess", false, "Send images to the engine without normalization")

	return cmd
}

func (c *cli) runExtract(cmd *cobra.Command, paths []string) error {
	cfg, err := config.LoadKTPConfig()
	if err != nil {
		return err
	}

	if engine, _ := cmd.Flags().GetString("engine"); engine != "" {
		cfg.Engine = engine
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if minConfidence, _ := cmd.Flags().GetFloat64("min-confidence"); minConfidence >= 0 {
		cfg.MinConfidence = minConfidence
	}
	if noPreprocess, _ := cmd.Flags().GetBool("no-preprocess"); noPreprocess {
		cfg.Preprocess = false
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	recognizer, err := c.newRecognizer(ctx, cfg.Engine)
	if err != nil {
		return err
	}
	extractor := cfg.NewExtractor(recognizer)
	u := utils.New()

	c.log.WithFields(log.Fields{
		"images":  len(paths),
		"engine":  recognizer.Name(),
		"workers": cfg.Workers,
	}).Info("Starting batch extraction")

	lines := make([]extractLine, len(paths))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			lines[i] = extractFile(gctx, extractor, u, cfg, path)
			if lines[i].Error != "" {
				failed.Add(1)
				c.log.WithFields(log.Fields{
					"file":  path,
					"error": lines[i].Error,
				}).Warn("Extraction failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	enc := jsoniter.NewEncoder(cmd.OutOrStdout())
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	c.log.WithFields(log.Fields{
		"images": len(paths),
		"failed": failed.Load(),
	}).Info("Batch extraction finished")

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(paths))
	}
	return nil
}

func extractFile(ctx context.Context, extractor *ktpPkg.Extractor, u utils.IUtils, cfg config.KTPConfig, path string) (line extractLine) {
	line.File = filepath.Base(path)
	start := time.Now()
	defer func() {
		line.DurationMs = time.Since(start).Milliseconds()
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		line.Error = err.Error()
		return line
	}
	img, err := u.DecodeImage(data)
	if err != nil {
		line.Error = fmt.Sprintf("decode image: %v", err)
		return line
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	record, err := extractor.Extract(ctx, u.FitForOCR(img, cfg.MaxImageDim))
	if err != nil {
		line.Error = err.Error()
		return line
	}

	line.Data = record
	line.Completeness = record.Completeness()
	return line
}
