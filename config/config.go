package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Segment SegmentConfig `mapstructure:"segment"`
	Model   ModelConfig   `mapstructure:"model"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	UploadDir    string   `mapstructure:"upload_dir"`
	ExportDir    string   `mapstructure:"export_dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// SegmentConfig 掩码流水线参数
type SegmentConfig struct {
	Threshold        float64 `mapstructure:"threshold"`
	MinArea          int     `mapstructure:"min_area"`
	MaxMasks         int     `mapstructure:"max_masks"`
	IOUThreshold     float64 `mapstructure:"iou_threshold"`
	GridSize         int     `mapstructure:"grid_size"`
	BatchSize        int     `mapstructure:"batch_size"`
	MaxInputSize     int     `mapstructure:"max_input_size"`
	MaxConcurrent    int     `mapstructure:"max_concurrent"`
	QueueTimeout     int     `mapstructure:"queue_timeout"`
	RefineMasks      bool    `mapstructure:"refine_masks"`
	RefineKernelSize int     `mapstructure:"refine_kernel_size"`
}

// ModelConfig 模型后端配置，backend 取值 sam2 / http
type ModelConfig struct {
	Backend         string        `mapstructure:"backend"`
	OnnxLibPath     string        `mapstructure:"onnx_lib_path"`
	EncodeModelPath string        `mapstructure:"encode_model_path"`
	DecodeModelPath string        `mapstructure:"decode_model_path"`
	UseCuda         bool          `mapstructure:"use_cuda"`
	Endpoint        string        `mapstructure:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type CleanupConfig struct {
	Schedule         string        `mapstructure:"schedule"`
	MaxAge           time.Duration `mapstructure:"max_age"`
	CleanupTempFiles bool          `mapstructure:"cleanup_temp_files"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.upload_dir", "./uploads")
	v.SetDefault("upload.export_dir", "./uploads/exports")
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})

	v.SetDefault("segment.threshold", 0.5)
	v.SetDefault("segment.min_area", 100)
	v.SetDefault("segment.max_masks", 20)
	v.SetDefault("segment.iou_threshold", 0.5)
	v.SetDefault("segment.grid_size", 8)
	v.SetDefault("segment.batch_size", 4)
	v.SetDefault("segment.max_input_size", 1024)
	v.SetDefault("segment.max_concurrent", 3)
	v.SetDefault("segment.queue_timeout", 60)
	v.SetDefault("segment.refine_masks", false)
	v.SetDefault("segment.refine_kernel_size", 3)

	v.SetDefault("model.backend", "sam2")
	v.SetDefault("model.onnx_lib_path", "")
	v.SetDefault("model.encode_model_path", "./sam2_weights/vision_encoder.onnx")
	v.SetDefault("model.decode_model_path", "./sam2_weights/prompt_encoder_mask_decoder.onnx")
	v.SetDefault("model.use_cuda", false)
	v.SetDefault("model.endpoint", "http://localhost:8188")
	v.SetDefault("model.timeout", 120*time.Second)

	v.SetDefault("cleanup.schedule", "@every 1h")
	v.SetDefault("cleanup.max_age", 24*time.Hour)
	v.SetDefault("cleanup.cleanup_temp_files", true)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			UploadDir:    "./uploads",
			ExportDir:    "./uploads/exports",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		Segment: SegmentConfig{
			Threshold:        0.5,
			MinArea:          100,
			MaxMasks:         20,
			IOUThreshold:     0.5,
			GridSize:         8,
			BatchSize:        4,
			MaxInputSize:     1024,
			MaxConcurrent:    3,
			QueueTimeout:     60,
			RefineMasks:      false,
			RefineKernelSize: 3,
		},
		Model: ModelConfig{
			Backend:         "sam2",
			EncodeModelPath: "./sam2_weights/vision_encoder.onnx",
			DecodeModelPath: "./sam2_weights/prompt_encoder_mask_decoder.onnx",
			Endpoint:        "http://localhost:8188",
			Timeout:         120 * time.Second,
		},
		Cleanup: CleanupConfig{
			Schedule:         "@every 1h",
			MaxAge:           24 * time.Hour,
			CleanupTempFiles: true,
		},
	}
}
