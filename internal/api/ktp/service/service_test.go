package ktpService

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"SentraKTP/internal/api/ktp"
	"SentraKTP/internal/entity"
	ktpPkg "SentraKTP/pkg/ktp"
	"SentraKTP/pkg/metrics"
	"SentraKTP/pkg/ocr"
	"SentraKTP/pkg/redis"
	"SentraKTP/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Name() string { return "mock" }

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image) (*ocr.Output, error) {
	args := m.Called(ctx, img)
	out, _ := args.Get(0).(*ocr.Output)
	return out, args.Error(1)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Detect(ctx context.Context, frame []byte) ([]entity.DetectionBox, error) {
	args := m.Called(ctx, frame)
	boxes, _ := args.Get(0).([]entity.DetectionBox)
	return boxes, args.Error(1)
}

var cardTexts = []string{
	"NIK : 3201014508900003",
	"Nama : SITI AMINAH",
	"Tempat/Tgl Lahir : JAKARTA, 05-08-1990",
	"Agama : ISLAM",
}

var cardBox = entity.DetectionBox{Label: "id card", X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Score: 0.93}

func encodeFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(1, 1, color.Black)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sized(w, h int) interface{} {
	return mock.MatchedBy(func(img image.Image) bool {
		return img.Bounds().Dx() == w && img.Bounds().Dy() == h
	})
}

type ServiceSuite struct {
	suite.Suite

	recognizer *mockRecognizer
	detector   *mockDetector
	sessions   redis.IRedis
	metrics    *metrics.Metrics
	service    *ktpService
	ctx        context.Context
}

func (s *ServiceSuite) SetupTest() {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.recognizer = new(mockRecognizer)
	s.detector = new(mockDetector)
	s.sessions = redis.NewMemory(time.Minute)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	extractor := ktpPkg.NewExtractor(s.recognizer, ktpPkg.WithPreprocessing(false))
	s.service = New(logger, extractor, s.detector, s.sessions, utils.New(), s.metrics, Config{
		Workers:        2,
		Timeout:        time.Second,
		MaxImageDim:    2000,
		DetectInterval: 300 * time.Millisecond,
		CropPadding:    0,
	}).(*ktpService)
}

func (s *ServiceSuite) TestExtract_Success() {
	s.recognizer.On("Recognize", mock.Anything, sized(200, 100)).
		Return(&ocr.Output{Texts: cardTexts, Scores: []float64{0.9, 0.9, 0.9, 0.9}}, nil).Once()

	res, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 200, 100), false)

	s.Require().NoError(err)
	nik, ok := res.Data.Get(ktpPkg.FieldNIK)
	s.True(ok)
	s.Equal("3201014508900003", nik)
	s.InDelta(5.0/15, res.Completeness, 1e-9)
	s.Equal("mock", res.Engine)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Extractions.WithLabelValues(metrics.OutcomeSuccess)))
	s.recognizer.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestExtract_InvalidImage() {
	_, err := s.service.Extract(s.ctx, []byte("not an image"), false)

	s.ErrorIs(err, ktp.ErrInvalidImage)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Extractions.WithLabelValues(metrics.OutcomeRejected)))
	s.recognizer.AssertNotCalled(s.T(), "Recognize", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestExtract_OCRFailure() {
	s.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(nil, errors.New("engine crashed")).Once()

	_, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 40, 20), false)

	s.ErrorIs(err, ktp.ErrOCRFailed)
	var predictErr *ocr.OCRPredictError
	s.Require().ErrorAs(err, &predictErr)
	s.Equal("mock", predictErr.Engine)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OCRFailures.WithLabelValues("mock")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Extractions.WithLabelValues(metrics.OutcomeOCRError)))
}

func (s *ServiceSuite) TestExtract_Timeout() {
	s.service.cfg.Timeout = 20 * time.Millisecond
	s.recognizer.On("Recognize", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	_, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 40, 20), false)

	s.ErrorIs(err, ktp.ErrOCRFailed)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Extractions.WithLabelValues(metrics.OutcomeTimeout)))
}

func (s *ServiceSuite) TestExtract_Busy() {
	s.service.cfg.Timeout = 20 * time.Millisecond
	s.Require().NoError(s.service.sem.Acquire(s.ctx, int64(s.service.cfg.Workers)))
	defer s.service.sem.Release(int64(s.service.cfg.Workers))

	_, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 40, 20), false)

	s.ErrorIs(err, ktp.ErrServiceBusy)
	s.recognizer.AssertNotCalled(s.T(), "Recognize", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestExtract_DetectCrops() {
	frame := encodeFrame(s.T(), 200, 100)
	s.detector.On("Detect", mock.Anything, frame).Return([]entity.DetectionBox{cardBox}, nil).Once()
	s.recognizer.On("Recognize", mock.Anything, sized(100, 50)).
		Return(&ocr.Output{Texts: cardTexts}, nil).Once()

	res, err := s.service.Extract(s.ctx, frame, true)

	s.Require().NoError(err)
	s.Equal(ktpPkg.NoConfidence, res.Data.ConfidenceAvg)
	s.recognizer.AssertExpectations(s.T())
	s.detector.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestExtract_DetectNoCard() {
	s.detector.On("Detect", mock.Anything, mock.Anything).
		Return([]entity.DetectionBox{{Label: "face", Score: 0.9}}, nil).Once()

	_, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 200, 100), true)

	s.ErrorIs(err, ktp.ErrCardNotDetected)
}

func (s *ServiceSuite) TestExtract_DetectorDownUsesFullFrame() {
	s.detector.On("Detect", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
	s.recognizer.On("Recognize", mock.Anything, sized(200, 100)).Return(&ocr.Output{Texts: cardTexts}, nil).Once()

	_, err := s.service.Extract(s.ctx, encodeFrame(s.T(), 200, 100), true)

	s.NoError(err)
	s.recognizer.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestProcessFrame_Throttled() {
	now := time.Unix(1000, 0)
	s.service.now = func() time.Time { return now }
	frame := encodeFrame(s.T(), 200, 100)

	s.detector.On("Detect", mock.Anything, frame).
		Return([]entity.DetectionBox{{Label: "id card", Score: 0.4}, cardBox}, nil).Once()

	event, err := s.service.ProcessFrame(s.ctx, "s1", frame)
	s.Require().NoError(err)
	s.Require().NotNil(event)
	s.Equal(ktp.EventYoloResult, event.Event)
	s.Require().Len(event.Boxes, 2)
	s.Equal(cardBox, event.Boxes[0])

	box, err := s.sessions.GetBox(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal(cardBox, *box)

	now = now.Add(100 * time.Millisecond)
	event, err = s.service.ProcessFrame(s.ctx, "s1", frame)
	s.NoError(err)
	s.Nil(event)

	now = now.Add(time.Second)
	s.detector.On("Detect", mock.Anything, frame).Return([]entity.DetectionBox{}, nil).Once()

	event, err = s.service.ProcessFrame(s.ctx, "s1", frame)
	s.Require().NoError(err)
	s.Equal(ktp.EventNoKTP, event.Event)

	_, err = s.sessions.GetBox(s.ctx, "s1")
	s.ErrorIs(err, redis.ErrNotFound)
	s.detector.AssertNumberOfCalls(s.T(), "Detect", 2)
}

func (s *ServiceSuite) TestProcessFrame_Empty() {
	_, err := s.service.ProcessFrame(s.ctx, "s1", nil)

	s.ErrorIs(err, ktp.ErrInvalidImage)
}

func (s *ServiceSuite) TestCapture() {
	_, err := s.service.Capture(s.ctx, "s1")
	s.ErrorIs(err, ktp.ErrNoFrame)

	frame := encodeFrame(s.T(), 200, 100)
	s.Require().NoError(s.sessions.SaveFrame(s.ctx, "s1", frame))

	_, err = s.service.Capture(s.ctx, "s1")
	s.ErrorIs(err, ktp.ErrCardNotDetected)

	s.Require().NoError(s.sessions.SaveBox(s.ctx, "s1", &cardBox))
	s.recognizer.On("Recognize", mock.Anything, sized(100, 50)).Return(&ocr.Output{Texts: cardTexts}, nil).Once()

	res, err := s.service.Capture(s.ctx, "s1")
	s.Require().NoError(err)
	s.True(res.Data.Has(ktpPkg.FieldNama))

	s.service.EndSession(s.ctx, "s1")
	_, err = s.service.Capture(s.ctx, "s1")
	s.ErrorIs(err, ktp.ErrNoFrame)
}

func (s *ServiceSuite) TestCapture_WithoutDetectorUsesFullFrame() {
	s.service.detector = nil
	s.Require().NoError(s.sessions.SaveFrame(s.ctx, "s1", encodeFrame(s.T(), 200, 100)))
	s.recognizer.On("Recognize", mock.Anything, sized(200, 100)).Return(&ocr.Output{Texts: cardTexts}, nil).Once()

	_, err := s.service.Capture(s.ctx, "s1")

	s.NoError(err)
	s.recognizer.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestNew_Defaults(t *testing.T) {
	svc := New(logrus.New(), ktpPkg.NewExtractor(nil), nil, redis.NewMemory(time.Minute), utils.New(), nil, Config{}).(*ktpService)

	assert.Positive(t, svc.cfg.Workers)
	assert.Equal(t, 10*time.Second, svc.cfg.Timeout)
	assert.NotNil(t, svc.metrics)
}
