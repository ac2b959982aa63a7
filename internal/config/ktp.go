package config

import (
	ktpService "SentraKTP/internal/api/ktp/service"
	"SentraKTP/pkg/detector"
	"SentraKTP/pkg/gemini"
	ktpPkg "SentraKTP/pkg/ktp"
	"SentraKTP/pkg/ocr"
	"SentraKTP/pkg/ocr/rekognition"
	"SentraKTP/pkg/ocr/tesseract"
	"SentraKTP/pkg/ocr/vision"
	"fmt"
	"golang.org/x/net/context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	EngineTesseract   = "tesseract"
	EngineVision      = "vision"
	EngineRekognition = "rekognition"
	EngineGemini      = "gemini"
)

type KTPConfig struct {
	MinConfidence  float64
	Engine         string
	Workers        int
	Timeout        time.Duration
	MaxImageDim    int
	SessionTTL     time.Duration
	DetectInterval time.Duration
	CropPadding    float64
	Preprocess     bool
}

func DefaultKTPConfig() KTPConfig {
	return KTPConfig{
		MinConfidence:  ktpPkg.DefaultMinConfidence,
		Engine:         EngineTesseract,
		Workers:        runtime.NumCPU(),
		Timeout:        10 * time.Second,
		MaxImageDim:    2000,
		SessionTTL:     5 * time.Minute,
		DetectInterval: 300 * time.Millisecond,
		CropPadding:    detector.DefaultPadding,
		Preprocess:     true,
	}
}

// LoadKTPConfig reads the KTP_* environment on top of the defaults. Unset
// variables keep their default; malformed ones are an error.
func LoadKTPConfig() (KTPConfig, error) {
	cfg := DefaultKTPConfig()
	var err error

	if cfg.MinConfidence, err = envFloat("KTP_MIN_CONFIDENCE", cfg.MinConfidence); err != nil {
		return cfg, err
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return cfg, fmt.Errorf("KTP_MIN_CONFIDENCE must be within [0, 1], got %v", cfg.MinConfidence)
	}

	if engine := strings.ToLower(strings.TrimSpace(os.Getenv("KTP_OCR_ENGINE"))); engine != "" {
		cfg.Engine = engine
	}
	switch cfg.Engine {
	case EngineTesseract, EngineVision, EngineRekognition, EngineGemini:
	default:
		return cfg, fmt.Errorf("unknown KTP_OCR_ENGINE %q", cfg.Engine)
	}

	if cfg.Workers, err = envInt("KTP_EXTRACT_WORKERS", cfg.Workers); err != nil {
		return cfg, err
	}
	if cfg.Timeout, err = envDuration("KTP_EXTRACT_TIMEOUT", cfg.Timeout); err != nil {
		return cfg, err
	}
	if cfg.MaxImageDim, err = envInt("KTP_MAX_IMAGE_DIM", cfg.MaxImageDim); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = envDuration("KTP_SESSION_TTL", cfg.SessionTTL); err != nil {
		return cfg, err
	}
	if cfg.DetectInterval, err = envDuration("KTP_DETECT_INTERVAL", cfg.DetectInterval); err != nil {
		return cfg, err
	}
	if cfg.CropPadding, err = envFloat("KTP_CROP_PADDING", cfg.CropPadding); err != nil {
		return cfg, err
	}
	if cfg.Preprocess, err = envBool("KTP_PREPROCESS", cfg.Preprocess); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c KTPConfig) Service() ktpService.Config {
	return ktpService.Config{
		Workers:        c.Workers,
		Timeout:        c.Timeout,
		MaxImageDim:    c.MaxImageDim,
		DetectInterval: c.DetectInterval,
		CropPadding:    c.CropPadding,
	}
}

func (c KTPConfig) NewExtractor(recognizer ocr.Recognizer) *ktpPkg.Extractor {
	return ktpPkg.NewExtractor(
		recognizer,
		ktpPkg.WithParser(ktpPkg.NewParser(ktpPkg.WithMinConfidence(c.MinConfidence))),
		ktpPkg.WithPreprocessing(c.Preprocess),
	)
}

// NewRecognizer builds the configured engine behind a mutex, since none of
// the engine clients promise to be safe for concurrent use.
func NewRecognizer(ctx context.Context, engine string) (ocr.Recognizer, error) {
	var (
		r   ocr.Recognizer
		err error
	)

	switch engine {
	case EngineTesseract:
		r = tesseract.New()
	case EngineVision:
		r, err = vision.New(ctx)
	case EngineRekognition:
		r, err = rekognition.New()
	case EngineGemini:
		r, err = gemini.NewGeminiClient()
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", engine)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s recognizer: %w", engine, err)
	}

	return ocr.Synchronized(r), nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
