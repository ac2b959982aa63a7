package ktp

import (
	"context"
	"image"

	"SentraKTP/pkg/ocr"
	"SentraKTP/pkg/preprocess"
)

const warnNoText = "no text detected"

// Extractor runs the full pipeline on a cropped card image: preprocessing,
// recognition, parsing and validation.
type Extractor struct {
	recognizer ocr.Recognizer
	parser     *Parser
	preprocess bool
}

type ExtractorOption func(*Extractor)

func WithParser(p *Parser) ExtractorOption {
	return func(e *Extractor) {
		e.parser = p
	}
}

// WithPreprocessing toggles the image normalization stage. Engines that do
// their own binarization can skip it.
func WithPreprocessing(enabled bool) ExtractorOption {
	return func(e *Extractor) {
		e.preprocess = enabled
	}
}

func NewExtractor(recognizer ocr.Recognizer, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		recognizer: recognizer,
		parser:     NewParser(),
		preprocess: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Engine() string {
	if e.recognizer == nil {
		return "none"
	}
	return e.recognizer.Name()
}

// Extract fails only with *ocr.OCRPredictError. Every other problem ends up in
// the record's warnings.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Record, error) {
	if e.preprocess {
		img = preprocess.Normalize(img)
	}

	texts, scores, err := ocr.Invoke(ctx, e.recognizer, img)
	if err != nil {
		return nil, err
	}

	if len(texts) == 0 {
		record := NewRecord()
		record.ConfidenceAvg = NoConfidence
		record.warn(warnNoText)
		return record, nil
	}

	return e.parser.Parse(texts, scores), nil
}
