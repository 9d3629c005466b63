package service

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/darshanvss/image-clipper/model"
	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
)

// 点标签，与 SAM2 提示约定一致
const (
	LabelBackground  = 0
	LabelForeground  = 1
	LabelBoxTopLeft  = 2
	LabelBoxBotRight = 3
)

// Point 提示点，坐标为补边正方形上的像素坐标
type Point struct {
	X     float64
	Y     float64
	Label int
}

// Prompt 一次解码调用的提示（单点、多点或框角点对）
type Prompt []Point

// ProbabilityMap 规范化概率图：行优先，取值 [0,1]
// 所有模型后端的输出在进入流水线前都被归一到这一种形状
type ProbabilityMap struct {
	Width  int
	Height int
	Data   []float32
}

// At 返回 (x,y) 处的概率
func (p ProbabilityMap) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Model 外部分割模型的统一契约
// 每张图先 Prepare 一次（对应模型的图像编码），之后按批解码提示；
// 每个提示至少产出一张覆盖输入图像的概率图
type Model interface {
	Prepare(ctx context.Context, img image.Image) (ImageSession, error)
	Close() error
}

// ImageSession 单张图像的推理会话
type ImageSession interface {
	Decode(ctx context.Context, prompts []Prompt) ([]ProbabilityMap, error)
	Destroy()
}

// ModelProvider 懒加载模型会话，并发调用共享同一次初始化
type ModelProvider struct {
	newFn func() (Model, error)
	once  sync.Once
	model Model
	err   error
}

func NewModelProvider(newFn func() (Model, error)) *ModelProvider {
	return &ModelProvider{newFn: newFn}
}

// Acquire 获取模型会话，首次调用触发初始化，失败结果同样被缓存
func (p *ModelProvider) Acquire() (Model, error) {
	p.once.Do(func() {
		utils.Logger.Info("initializing model session")
		p.model, p.err = p.newFn()
		if p.err != nil {
			utils.Logger.Error("model session initialization failed", zap.Error(p.err))
		}
	})
	if p.err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrModelUnavailable, p.err)
	}
	return p.model, nil
}

// Close 释放已初始化的模型会话
func (p *ModelProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// cropMap 把覆盖补边正方形的概率图裁剪到原图对应的子区域，
// 裁剪后概率图的宽高比与原图一致，下游的缩放比例计算才成立
func cropMap(pm ProbabilityMap, pad PaddedInput) ProbabilityMap {
	if pad.OffsetX == 0 && pad.OffsetY == 0 && pad.Width == pad.Side && pad.Height == pad.Side {
		return pm
	}

	scaleX := float64(pm.Width) / float64(pad.Side)
	scaleY := float64(pm.Height) / float64(pad.Side)

	x0 := int(float64(pad.OffsetX) * scaleX)
	y0 := int(float64(pad.OffsetY) * scaleY)
	w := int(float64(pad.Width) * scaleX)
	h := int(float64(pad.Height) * scaleY)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if x0+w > pm.Width {
		w = pm.Width - x0
	}
	if y0+h > pm.Height {
		h = pm.Height - y0
	}

	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		copy(data[y*w:(y+1)*w], pm.Data[(y0+y)*pm.Width+x0:(y0+y)*pm.Width+x0+w])
	}
	return ProbabilityMap{Width: w, Height: h, Data: data}
}
