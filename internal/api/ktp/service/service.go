package ktpService

import (
	"SentraKTP/internal/api/ktp"
	"SentraKTP/pkg/detector"
	ktpPkg "SentraKTP/pkg/ktp"
	"SentraKTP/pkg/metrics"
	"SentraKTP/pkg/redis"
	"SentraKTP/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/sync/semaphore"
	"runtime"
	"sync"
	"time"
)

type IKTPService interface {
	Extract(ctx context.Context, image []byte, detect bool) (*ktp.ExtractResponse, error)
	ProcessFrame(ctx context.Context, sessionID string, frame []byte) (*ktp.Event, error)
	Capture(ctx context.Context, sessionID string) (*ktp.ExtractResponse, error)
	EndSession(ctx context.Context, sessionID string)
}

type Config struct {
	// Workers bounds how many extractions run at once.
	Workers        int
	Timeout        time.Duration
	MaxImageDim    int
	DetectInterval time.Duration
	CropPadding    float64
}

type ktpService struct {
	log       *logrus.Logger
	extractor *ktpPkg.Extractor
	detector  detector.Detector
	sessions  redis.IRedis
	utils     utils.IUtils
	metrics   *metrics.Metrics
	cfg       Config
	sem       *semaphore.Weighted

	mu         sync.Mutex
	lastDetect map[string]time.Time
	now        func() time.Time
}

// New builds the KTP service. det may be nil, in which case frames are
// stored but never searched for a card and captures use the whole frame.
func New(
	log *logrus.Logger,
	extractor *ktpPkg.Extractor,
	det detector.Detector,
	sessions redis.IRedis,
	utils utils.IUtils,
	m *metrics.Metrics,
	cfg Config,
) IKTPService {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &ktpService{
		log:        log,
		extractor:  extractor,
		detector:   det,
		sessions:   sessions,
		utils:      utils,
		metrics:    m,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		lastDetect: make(map[string]time.Time),
		now:        time.Now,
	}
}
