package redis

import (
	"SentraKTP/internal/entity"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("session key not found")

// IRedis keeps the latest frame and card box of each capture session.
type IRedis interface {
	SaveFrame(ctx context.Context, sessionID string, frame []byte) error
	GetFrame(ctx context.Context, sessionID string) ([]byte, error)
	SaveBox(ctx context.Context, sessionID string, box *entity.DetectionBox) error
	GetBox(ctx context.Context, sessionID string) (*entity.DetectionBox, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func frameKey(sessionID string) string { return "ktp:session:" + sessionID + ":frame" }
func boxKey(sessionID string) string   { return "ktp:session:" + sessionID + ":box" }

func New(ttl time.Duration) IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, ttl: ttl}
}

func (r *redisClient) SaveFrame(ctx context.Context, sessionID string, frame []byte) error {
	if err := r.client.Set(ctx, frameKey(sessionID), frame, r.ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error saving frame for session %s: %v", sessionID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetFrame(ctx context.Context, sessionID string) ([]byte, error) {
	val, err := r.client.Get(ctx, frameKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting frame for session %s: %v", sessionID, err))
		return nil, err
	}
	return val, nil
}

// SaveBox stores box, or forgets the previous one when box is nil.
func (r *redisClient) SaveBox(ctx context.Context, sessionID string, box *entity.DetectionBox) error {
	if box == nil {
		return r.client.Del(ctx, boxKey(sessionID)).Err()
	}

	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(box)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, boxKey(sessionID), payload, r.ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error saving box for session %s: %v", sessionID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetBox(ctx context.Context, sessionID string) (*entity.DetectionBox, error) {
	val, err := r.client.Get(ctx, boxKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting box for session %s: %v", sessionID, err))
		return nil, err
	}

	var box entity.DetectionBox
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(val, &box); err != nil {
		return nil, err
	}
	return &box, nil
}

func (r *redisClient) Delete(ctx context.Context, sessionID string) error {
	result, err := r.client.Del(ctx, frameKey(sessionID), boxKey(sessionID)).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting session %s: %v", sessionID, err))
		return err
	}

	logrus.Debug(fmt.Sprintf("Deleted %d keys for session %s", result, sessionID))
	return nil
}
