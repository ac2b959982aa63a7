package main

import (
	"SentraKTP/pkg/log"
	"SentraKTP/pkg/preprocess"
	"SentraKTP/pkg/utils"
	"fmt"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"os"
)

func newPreprocessCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess <in> <out>",
		Short: "Write the normalized image the OCR engine would see",
		Long: `Preprocess runs grayscale, bilateral denoise, CLAHE, Otsu binarization and
deskew on one image. The output format follows the extension of <out>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreprocess(args[0], args[1])
		},
	}
}

func (c *cli) runPreprocess(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	img, err := utils.New().DecodeImage(data)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	normalized := preprocess.Normalize(img)
	if err := imaging.Save(normalized, out); err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	c.log.WithFields(log.Fields{
		"in":     in,
		"out":    out,
		"width":  normalized.Bounds().Dx(),
		"height": normalized.Bounds().Dy(),
	}).Info("Image preprocessed")

	return nil
}
