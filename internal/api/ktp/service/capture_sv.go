package ktpService

import (
	"SentraKTP/internal/api/ktp"
	contextPkg "SentraKTP/pkg/context"
	"SentraKTP/pkg/detector"
	"SentraKTP/pkg/log"
	"SentraKTP/pkg/redis"
	"SentraKTP/pkg/response"
	"errors"
	"fmt"
	"golang.org/x/net/context"
)

// ProcessFrame stores frame as the session's latest and, at most once per
// detect interval, looks for a card in it. A nil event means nothing needs
// to be pushed to the client.
func (s *ktpService) ProcessFrame(ctx context.Context, sessionID string, frame []byte) (*ktp.Event, error) {
	if len(frame) == 0 {
		return nil, ktp.ErrInvalidImage
	}

	if err := s.sessions.SaveFrame(ctx, sessionID, frame); err != nil {
		return nil, response.Wrap(ktp.ErrInternalServerError, err)
	}

	if s.detector == nil || !s.dueForDetection(sessionID) {
		return nil, nil
	}

	boxes, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detect card: %w", err)
	}

	cards := detector.CardBoxes(boxes)
	s.metrics.IncrementDetection(len(cards) > 0)

	if len(cards) == 0 {
		if err := s.sessions.SaveBox(ctx, sessionID, nil); err != nil {
			return nil, response.Wrap(ktp.ErrInternalServerError, err)
		}
		return &ktp.Event{Event: ktp.EventNoKTP}, nil
	}

	if err := s.sessions.SaveBox(ctx, sessionID, &cards[0]); err != nil {
		return nil, response.Wrap(ktp.ErrInternalServerError, err)
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
		"score":      cards[0].Score,
	}).Debug("KTP detected in frame")

	return &ktp.Event{Event: ktp.EventYoloResult, Boxes: cards}, nil
}

func (s *ktpService) dueForDetection(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastDetect[sessionID]; ok && now.Sub(last) < s.cfg.DetectInterval {
		return false
	}
	s.lastDetect[sessionID] = now
	return true
}

// Capture extracts the session's latest frame, cropped to the last card box.
func (s *ktpService) Capture(ctx context.Context, sessionID string) (*ktp.ExtractResponse, error) {
	frame, err := s.sessions.GetFrame(ctx, sessionID)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ktp.ErrNoFrame
	} else if err != nil {
		return nil, response.Wrap(ktp.ErrInternalServerError, err)
	}

	img, err := s.utils.DecodeImage(frame)
	if err != nil {
		return nil, response.Wrap(ktp.ErrInvalidImage, err)
	}
	img = s.utils.FitForOCR(img, s.cfg.MaxImageDim)

	if s.detector == nil {
		return s.run(ctx, img)
	}

	box, err := s.sessions.GetBox(ctx, sessionID)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ktp.ErrCardNotDetected
	} else if err != nil {
		return nil, response.Wrap(ktp.ErrInternalServerError, err)
	}

	return s.run(ctx, detector.Crop(img, *box, s.cfg.CropPadding))
}

func (s *ktpService) EndSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.lastDetect, sessionID)
	s.mu.Unlock()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.log.WithFields(log.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Failed to clear capture session")
	}
}
