package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/darshanvss/image-clipper/config"
	"github.com/darshanvss/image-clipper/model"
	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
)

// Segmenter 分割流水线编排：
// 补边 → 分批提示推理 → 提取 → 归一化 → (可选优化) → 去重 → 排序
type Segmenter struct {
	cfg          config.SegmentConfig
	provider     *ModelProvider
	grid         *GridGenerator
	extractor    *Extractor
	dedup        *Deduplicator
	refiner      *Refiner
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewSegmenter(cfg *config.SegmentConfig, provider *ModelProvider) *Segmenter {
	s := &Segmenter{
		cfg:          *cfg,
		provider:     provider,
		grid:         NewGridGenerator(cfg.GridSize, cfg.MaxInputSize),
		extractor:    NewExtractor(cfg.Threshold, cfg.MinArea),
		dedup:        NewDeduplicator(cfg.IOUThreshold),
		semaphore:    make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout: time.Duration(cfg.QueueTimeout) * time.Second,
	}
	if cfg.RefineMasks {
		s.refiner = NewRefiner(cfg.RefineKernelSize)
	}
	return s
}

// Segment 对一张图执行完整分割，返回排好序的掩码集合
// 掩码为空是合法结果；单批提示失败只丢弃该批，模型不可用才终止请求
func (s *Segmenter) Segment(ctx context.Context, img image.Image, req *model.SegmentRequest) (*model.SegmentationResult, error) {
	// 并发控制
	qctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-qctx.Done():
		return nil, fmt.Errorf("处理队列已满，请稍后重试")
	}

	startTime := time.Now()

	mdl, err := s.provider.Acquire()
	if err != nil {
		return nil, err
	}

	imgW := img.Bounds().Dx()
	imgH := img.Bounds().Dy()
	if imgW < 1 || imgH < 1 {
		return nil, model.ErrInvalidInput
	}

	pad := s.grid.Prepare(img)
	prompts, err := s.buildPrompts(pad, req)
	if err != nil {
		return nil, err
	}

	sess, err := mdl.Prepare(ctx, pad.Image)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", model.ErrModelUnavailable, err)
	}
	defer sess.Destroy()

	batch := s.cfg.BatchSize
	if batch < 1 {
		batch = 1
	}

	var maps []ProbabilityMap
	for i := 0; i < len(prompts); i += batch {
		end := min(i+batch, len(prompts))
		out, err := sess.Decode(ctx, prompts[i:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, model.ErrModelUnavailable) {
				return nil, err
			}
			// 单批失败只损失该批的候选
			utils.Logger.Warn("prompt batch failed",
				zap.Int("batch_start", i), zap.Error(err))
			continue
		}
		maps = append(maps, out...)
	}

	candidates := make([]model.Mask, 0, len(maps))
	for _, pm := range maps {
		cropped := cropMap(pm, pad)
		m := s.extractor.Extract(cropped, imgW, imgH)
		if m == nil {
			continue
		}
		if err := NormalizeMask(m, cropped.Width, cropped.Height, imgW, imgH); err != nil {
			utils.Logger.Warn("dropping mask with bad buffer", zap.Error(err))
			continue
		}
		if s.refiner != nil {
			m.Data = s.refiner.Refine(m.Data, imgW, imgH)
			m.Area = countForeground(m.Data)
			if m.Area == 0 {
				continue
			}
		}
		candidates = append(candidates, *m)
	}

	// 去重前按分数降序，重叠的一组掩码保留分数最高者
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	accepted := make([]model.Mask, 0, len(candidates))
	for i := range candidates {
		if s.dedup.Accept(&candidates[i], accepted) {
			accepted = append(accepted, candidates[i])
		}
	}

	masks := Rank(accepted, s.cfg.MaxMasks)
	result := &model.SegmentationResult{
		Masks:       masks,
		ImageWidth:  imgW,
		ImageHeight: imgH,
		Timestamp:   time.Now().Unix(),
	}

	utils.Logger.Info("segmentation finished",
		zap.Int("prompts", len(prompts)),
		zap.Int("raw_maps", len(maps)),
		zap.Int("masks", len(masks)),
		zap.Duration("duration", time.Since(startTime)))

	return result, nil
}

// buildPrompts 按请求的 mode 分发提示来源
// 显式指定 point/box 但缺少对应参数是请求错误，不允许静默退回自动网格；
// 未指定模式时按参数推断，缺省为自动网格
func (s *Segmenter) buildPrompts(pad PaddedInput, req *model.SegmentRequest) ([]Prompt, error) {
	mode := ""
	if req != nil {
		mode = req.Mode
	}

	switch mode {
	case "point":
		p := s.grid.PointPrompt(pad, req.Points, req.PointLabels)
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: 点选模式缺少提示点", model.ErrInvalidInput)
		}
		return []Prompt{p}, nil
	case "box":
		p := s.grid.BoxPrompt(pad, req.Box)
		if p == nil {
			return nil, fmt.Errorf("%w: 框选模式缺少边界框", model.ErrInvalidInput)
		}
		return []Prompt{p}, nil
	case "auto":
		return s.grid.AutoPrompts(pad), nil
	case "":
		if req != nil {
			if len(req.Box) == 4 {
				if p := s.grid.BoxPrompt(pad, req.Box); p != nil {
					return []Prompt{p}, nil
				}
			}
			if len(req.Points) > 0 {
				if p := s.grid.PointPrompt(pad, req.Points, req.PointLabels); len(p) > 0 {
					return []Prompt{p}, nil
				}
			}
		}
		return s.grid.AutoPrompts(pad), nil
	default:
		return nil, fmt.Errorf("%w: 未知的分割模式 %q", model.ErrInvalidInput, mode)
	}
}

func countForeground(data []byte) int {
	n := 0
	for _, v := range data {
		if v != 0 {
			n++
		}
	}
	return n
}
