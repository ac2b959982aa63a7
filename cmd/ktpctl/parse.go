package main

import (
	ktpPkg "SentraKTP/pkg/ktp"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"io"
	"os"
)

// tokenFile is the saved output of an engine run. Either the parallel
// texts/scores lists or a list of tokens is accepted.
type tokenFile struct {
	Texts  []string       `json:"texts"`
	Scores []float64      `json:"scores"`
	Tokens []ktpPkg.Token `json:"tokens"`
}

func newParseCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <tokens.json>",
		Short: "Run the field parser on a saved token list",
		Long: `Parse reads recognized text from a JSON file, or from stdin when the
argument is "-", and prints the resulting record. The file holds either
{"texts": [...], "scores": [...]} or {"tokens": [{"text": ..., "confidence": ...}]}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runParse(cmd, args[0])
		},
	}

	cmd.Flags().Float64("min-confidence", ktpPkg.DefaultMinConfidence, "Drop tokens scored below this")
	cmd.Flags().Bool("pretty", false, "Indent the output")

	return cmd
}

func (c *cli) runParse(cmd *cobra.Command, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read tokens: %w", err)
	}

	var tf tokenFile
	if err := jsoniter.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("decode tokens: %w", err)
	}

	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	parser := ktpPkg.NewParser(ktpPkg.WithMinConfidence(minConfidence))

	var record *ktpPkg.Record
	if len(tf.Tokens) > 0 {
		record = parser.ParseTokens(tf.Tokens)
	} else {
		record = parser.Parse(tf.Texts, tf.Scores)
	}

	c.log.WithField("completeness", record.Completeness()).Debug("Parsed token file")

	out := struct {
		Data         *ktpPkg.Record `json:"data"`
		Completeness float64        `json:"completeness"`
	}{record, record.Completeness()}

	var payload []byte
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		payload, err = jsoniter.MarshalIndent(out, "", "  ")
	} else {
		payload, err = jsoniter.Marshal(out)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return err
}
