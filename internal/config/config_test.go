package config

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	jwtPkg "SentraKTP/pkg/jwt"
	"SentraKTP/pkg/ocr"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func clearKTPEnv(t *testing.T) {
	for _, key := range []string{
		"KTP_MIN_CONFIDENCE", "KTP_OCR_ENGINE", "KTP_EXTRACT_WORKERS", "KTP_EXTRACT_TIMEOUT",
		"KTP_MAX_IMAGE_DIM", "KTP_SESSION_TTL", "KTP_DETECT_INTERVAL", "KTP_CROP_PADDING", "KTP_PREPROCESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadKTPConfig_Defaults(t *testing.T) {
	clearKTPEnv(t)

	cfg, err := LoadKTPConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultKTPConfig(), cfg)
	assert.Equal(t, 0.65, cfg.MinConfidence)
	assert.Equal(t, EngineTesseract, cfg.Engine)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2000, cfg.MaxImageDim)
	assert.Equal(t, 300*time.Millisecond, cfg.DetectInterval)
	assert.Equal(t, 0.02, cfg.CropPadding)
	assert.True(t, cfg.Preprocess)
}

func TestLoadKTPConfig_Overrides(t *testing.T) {
	clearKTPEnv(t)
	t.Setenv("KTP_MIN_CONFIDENCE", "0.5")
	t.Setenv("KTP_OCR_ENGINE", " Vision ")
	t.Setenv("KTP_EXTRACT_WORKERS", "3")
	t.Setenv("KTP_EXTRACT_TIMEOUT", "2s")
	t.Setenv("KTP_SESSION_TTL", "1m")
	t.Setenv("KTP_PREPROCESS", "false")

	cfg, err := LoadKTPConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.MinConfidence)
	assert.Equal(t, EngineVision, cfg.Engine)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.Preprocess)

	svc := cfg.Service()
	assert.Equal(t, 3, svc.Workers)
	assert.Equal(t, 2*time.Second, svc.Timeout)
	assert.Equal(t, cfg.CropPadding, svc.CropPadding)
}

func TestLoadKTPConfig_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"KTP_MIN_CONFIDENCE", "high"},
		{"KTP_MIN_CONFIDENCE", "1.5"},
		{"KTP_OCR_ENGINE", "paddle"},
		{"KTP_EXTRACT_WORKERS", "many"},
		{"KTP_EXTRACT_TIMEOUT", "10"},
		{"KTP_PREPROCESS", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearKTPEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadKTPConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestNewRecognizer_UnknownEngine(t *testing.T) {
	_, err := NewRecognizer(context.Background(), "paddle")
	require.Error(t, err)
}

func TestNewRecognizer_GeminiNeedsKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewRecognizer(context.Background(), EngineGemini)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini")
}

type fixedRecognizer struct {
	texts  []string
	scores []float64
}

func (f fixedRecognizer) Name() string { return "fixed" }

func (f fixedRecognizer) Recognize(context.Context, image.Image) (*ocr.Output, error) {
	return &ocr.Output{Texts: f.texts, Scores: f.scores}, nil
}

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("REDIS_ADDRESS", "")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := DefaultKTPConfig()
	cfg.Preprocess = false

	app := fiber.New()
	server, err := NewServer(
		WithFiber(app),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithKTPConfig(cfg),
		WithRedisServer(),
		WithMiddleware(),
		WithUtils(),
		WithMetrics(),
		WithRecognizer(ocr.Synchronized(fixedRecognizer{
			texts:  []string{"NIK : 3201014508900003", "Nama : SITI AMINAH", "Agama : ISLAM"},
			scores: []float64{0.9, 0.8, 0.7},
		})),
	)
	require.NoError(t, err)

	server.RegisterHandler()
	server.Mount()
	return app
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(WithLogger(logrus.New()))
	require.Error(t, err)

	_, err = NewServer(WithFiber(fiber.New()), WithLogger(logrus.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recognizer")

	_, err = NewServer(WithMiddleware())
	require.Error(t, err)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	app := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "fixed", health["engine"])
	assert.Equal(t, "disabled", health["detector"])

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ktp_extraction_duration_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServer_ExtractEndToEnd(t *testing.T) {
	t.Setenv("JWT_ACCESS_TOKEN_SECRET", "config-test-secret")
	app := newTestServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 64, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	payload, _ := jsoniter.Marshal(map[string]string{
		"image_base64": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	token, _, err := jwtPkg.Sign(map[string]interface{}{"id": "kiosk-7", "name": "Lobby"}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/ktp/extract", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out struct {
		Data struct {
			NIK           *string `json:"nik"`
			Agama         *string `json:"agama"`
			ConfidenceAvg float64 `json:"confidence_avg"`
		} `json:"data"`
		Completeness float64 `json:"completeness"`
		Engine       string  `json:"engine"`
	}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Data.NIK)
	assert.Equal(t, "3201014508900003", *out.Data.NIK)
	require.NotNil(t, out.Data.Agama)
	assert.Equal(t, "ISLAM", *out.Data.Agama)
	assert.InDelta(t, 0.8, out.Data.ConfidenceAvg, 1e-9)
	assert.InDelta(t, 3.0/15, out.Completeness, 1e-9)
	assert.Equal(t, "fixed", out.Engine)
}
