package ktpService

import (
	"SentraKTP/internal/api/ktp"
	contextPkg "SentraKTP/pkg/context"
	"SentraKTP/pkg/detector"
	ktpPkg "SentraKTP/pkg/ktp"
	"SentraKTP/pkg/log"
	"SentraKTP/pkg/metrics"
	"SentraKTP/pkg/response"
	"errors"
	"fmt"
	"golang.org/x/net/context"
	"image"
	"time"
)

func (s *ktpService) Extract(ctx context.Context, data []byte, detect bool) (*ktp.ExtractResponse, error) {
	img, err := s.utils.DecodeImage(data)
	if err != nil {
		s.metrics.ObserveExtraction(time.Now(), metrics.OutcomeRejected, 0, 0)
		return nil, response.Wrap(ktp.ErrInvalidImage, err)
	}
	img = s.utils.FitForOCR(img, s.cfg.MaxImageDim)

	if detect {
		img, err = s.cropToCard(ctx, data, img)
		if err != nil {
			return nil, err
		}
	}

	return s.run(ctx, img)
}

// cropToCard runs the detector on the encoded frame and crops img to the
// best card box. A missing or failing detector falls back to the full frame.
func (s *ktpService) cropToCard(ctx context.Context, frame []byte, img image.Image) (image.Image, error) {
	ids := log.Fields(contextPkg.LogFields(ctx))

	if s.detector == nil {
		s.log.WithFields(ids).Warn("Card detection requested but no detector configured, using full frame")
		return img, nil
	}

	boxes, err := s.detector.Detect(ctx, frame)
	if err != nil {
		s.log.WithFields(ids).WithField("error", err.Error()).Warn("Card detector unavailable, using full frame")
		return img, nil
	}

	box, ok := detector.SelectCard(boxes)
	s.metrics.IncrementDetection(ok)
	if !ok {
		return nil, ktp.ErrCardNotDetected
	}

	s.log.WithFields(ids).WithFields(log.Fields{
		"score": box.Score,
		"box":   box.ToPixel(img.Bounds().Dx(), img.Bounds().Dy()).String(),
	}).Debug("Card detected")

	return detector.Crop(img, box, s.cfg.CropPadding), nil
}

// run performs one bounded extraction. The timeout covers both the wait for
// a worker slot and the OCR call.
func (s *ktpService) run(ctx context.Context, img image.Image) (*ktp.ExtractResponse, error) {
	start := time.Now()
	logger := s.log.WithFields(log.Fields(contextPkg.LogFields(ctx)))
	engine := s.extractor.Engine()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.metrics.ObserveExtraction(start, metrics.OutcomeRejected, 0, 0)
		logger.WithField("workers", s.cfg.Workers).Warn("No extraction worker available")
		return nil, response.Wrap(ktp.ErrServiceBusy, err)
	}
	defer s.sem.Release(1)

	record, err := s.extractor.Extract(ctx, img)
	if err != nil {
		outcome := metrics.OutcomeOCRError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		s.metrics.ObserveExtraction(start, outcome, 0, 0)
		s.metrics.IncrementOCRFailure(engine)

		logger.WithFields(log.Fields{
			"engine":  engine,
			"outcome": outcome,
			"error":   err.Error(),
		}).Error("OCR invocation failed")
		return nil, response.Wrap(ktp.ErrOCRFailed, err)
	}

	for _, w := range record.ParseWarnings {
		logger.Warn("Parse warning: " + w)
	}

	completeness := record.Completeness()
	elapsed := time.Since(start)
	s.metrics.ObserveExtraction(start, metrics.OutcomeSuccess, completeness, len(record.ParseWarnings))

	logger.WithFields(log.Fields{
		"engine":       engine,
		"duration_ms":  elapsed.Milliseconds(),
		"completeness": fmt.Sprintf("%.0f%%", completeness*100),
		"nik_found":    record.Has(ktpPkg.FieldNIK),
		"warnings":     len(record.ParseWarnings),
	}).Info("KTP extraction finished")

	return &ktp.ExtractResponse{
		Data:         record,
		Completeness: completeness,
		Engine:       engine,
		DurationMs:   elapsed.Milliseconds(),
	}, nil
}
