package main

import (
	"SentraKTP/pkg/ocr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

var version = "1.0.0"

type cli struct {
	log           *logrus.Logger
	newRecognizer func(ctx context.Context, engine string) (ocr.Recognizer, error)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "ktpctl",
		Short: "Extract structured data from Indonesian KTP images",
		Long: `ktpctl runs the KTP extraction pipeline outside the HTTP service.

It reads the same KTP_* environment as the server, so a .env file in the
working directory configures the OCR engine and the confidence threshold.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newExtractCmd(c),
		newParseCmd(c),
		newPreprocessCmd(c),
		newTokenCmd(c),
	)

	return root
}
