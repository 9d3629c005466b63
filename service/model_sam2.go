package service

import (
	"context"
	"fmt"
	"image"

	"github.com/darshanvss/image-clipper/config"
	"github.com/getcharzp/go-vision/sam2"
)

// sam2Model 进程内 SAM2 ONNX 后端
// 引擎输出为二值掩码加整体分数，归一化时前景像素的概率取模型分数，
// 背景为 0，这样前景均值分数即还原模型自身的置信度
type sam2Model struct {
	engine *sam2.Engine
}

// NewSAM2Model 按配置初始化 SAM2 引擎
func NewSAM2Model(cfg *config.ModelConfig) (Model, error) {
	sc := sam2.DefaultConfig()
	if cfg.OnnxLibPath != "" {
		sc.OnnxRuntimeLibPath = cfg.OnnxLibPath
	}
	if cfg.EncodeModelPath != "" {
		sc.EncodeModelPath = cfg.EncodeModelPath
	}
	if cfg.DecodeModelPath != "" {
		sc.DecodeModelPath = cfg.DecodeModelPath
	}
	sc.UseCuda = cfg.UseCuda

	engine, err := sam2.NewEngine(sc)
	if err != nil {
		return nil, fmt.Errorf("init sam2 engine: %w", err)
	}
	return &sam2Model{engine: engine}, nil
}

func (m *sam2Model) Prepare(ctx context.Context, img image.Image) (ImageSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	imgCtx, err := m.engine.EncodeImage(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &sam2Session{imgCtx: imgCtx}, nil
}

func (m *sam2Model) Close() error {
	m.engine.Destroy()
	return nil
}

type sam2Session struct {
	imgCtx *sam2.ImageContext
}

func (s *sam2Session) Decode(ctx context.Context, prompts []Prompt) ([]ProbabilityMap, error) {
	maps := make([]ProbabilityMap, 0, len(prompts))
	for _, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points := make([]sam2.Point, 0, len(prompt))
		for _, p := range prompt {
			points = append(points, sam2.Point{
				X:     float32(p.X),
				Y:     float32(p.Y),
				Label: sam2.Label(p.Label),
			})
		}

		maskImg, score, err := s.imgCtx.Decode(points)
		if err != nil {
			return nil, fmt.Errorf("decode mask: %w", err)
		}
		maps = append(maps, maskToProbability(maskImg, float64(score)))
	}
	return maps, nil
}

func (s *sam2Session) Destroy() {
	s.imgCtx.Destroy()
}

// maskToProbability 二值掩码归一化为概率图
func maskToProbability(maskImg image.Image, score float64) ProbabilityMap {
	if score <= 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	b := maskImg.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := maskImg.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if r > 0x7fff {
				data[y*w+x] = float32(score)
			}
		}
	}
	return ProbabilityMap{Width: w, Height: h, Data: data}
}
