package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/darshanvss/image-clipper/config"
	"github.com/darshanvss/image-clipper/model"
	"github.com/darshanvss/image-clipper/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetSegmentationResult 从缓存获取分割结果，键为图片MD5与请求参数的组合
func (s *RedisService) GetSegmentationResult(ctx context.Context, cacheKey string) (*model.SegmentationResult, error) {
	key := "segment:" + cacheKey
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	result, err := unmarshalResult(data)
	if err != nil {
		utils.Logger.Error("failed to unmarshal segmentation result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return result, nil
}

// SetSegmentationResult 写入分割结果缓存
func (s *RedisService) SetSegmentationResult(ctx context.Context, cacheKey string, result *model.SegmentationResult) error {
	key := "segment:" + cacheKey
	data, err := marshalResult(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// 缓存编解码，掩码缓冲区经 base64 往返保持逐字节一致
func marshalResult(result *model.SegmentationResult) ([]byte, error) {
	return json.Marshal(result)
}

func unmarshalResult(data []byte) (*model.SegmentationResult, error) {
	var result model.SegmentationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
