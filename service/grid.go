package service

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// PaddedInput 送入模型前的补边结果
// 原图（必要时先缩小）被居中放入边长为 max(w,h) 的黑色正方形
type PaddedInput struct {
	Image    *image.NRGBA
	Side     int
	OffsetX  int
	OffsetY  int
	Width    int     // 正方形内原图区域的宽
	Height   int     // 正方形内原图区域的高
	Scale    float64 // 原图像素 → 正方形像素的缩放系数
}

// GridGenerator 负责补边和自动提示点网格
type GridGenerator struct {
	gridSize     int
	maxInputSize int
}

func NewGridGenerator(gridSize, maxInputSize int) *GridGenerator {
	if gridSize < 1 {
		gridSize = 1
	}
	return &GridGenerator{gridSize: gridSize, maxInputSize: maxInputSize}
}

// Prepare 构建模型输入：长边超限时先等比缩小，再居中补边成正方形
func (g *GridGenerator) Prepare(img image.Image) PaddedInput {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	scale := 1.0
	longest := max(w, h)
	if g.maxInputSize > 0 && longest > g.maxInputSize {
		scale = float64(g.maxInputSize) / float64(longest)
		nw := max(1, int(float64(w)*scale))
		nh := max(1, int(float64(h)*scale))
		img = resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3)
		w, h = nw, nh
	}

	side := max(w, h)
	offX := (side - w) / 2
	offY := (side - h) / 2

	padded := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Draw(padded, image.Rect(offX, offY, offX+w, offY+h), img, img.Bounds().Min, draw.Src)

	return PaddedInput{
		Image:   padded,
		Side:    side,
		OffsetX: offX,
		OffsetY: offY,
		Width:   w,
		Height:  h,
		Scale:   scale,
	}
}

// GridPoints 返回 n×n 网格各单元中心，归一化到 [0,1]
func GridPoints(n int) [][2]float64 {
	points := make([][2]float64, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			points = append(points, [2]float64{
				(float64(col) + 0.5) / float64(n),
				(float64(row) + 0.5) / float64(n),
			})
		}
	}
	return points
}

// AutoPrompts 自动模式：网格上每个单元中心一个前景单点提示
func (g *GridGenerator) AutoPrompts(pad PaddedInput) []Prompt {
	centers := GridPoints(g.gridSize)
	prompts := make([]Prompt, 0, len(centers))
	for _, c := range centers {
		prompts = append(prompts, Prompt{{
			X:     c[0] * float64(pad.Side),
			Y:     c[1] * float64(pad.Side),
			Label: LabelForeground,
		}})
	}
	return prompts
}

// PointPrompt 用户点击模式：原图像素坐标映射到补边正方形
func (g *GridGenerator) PointPrompt(pad PaddedInput, points [][]int, labels []int) Prompt {
	prompt := make(Prompt, 0, len(points))
	for i, p := range points {
		if len(p) < 2 {
			continue
		}
		label := LabelForeground
		if i < len(labels) {
			label = labels[i]
		}
		prompt = append(prompt, Point{
			X:     float64(p[0])*pad.Scale + float64(pad.OffsetX),
			Y:     float64(p[1])*pad.Scale + float64(pad.OffsetY),
			Label: label,
		})
	}
	return prompt
}

// BoxPrompt 框选模式：[x1,y1,x2,y2] 转为左上/右下角点对
func (g *GridGenerator) BoxPrompt(pad PaddedInput, box []int) Prompt {
	if len(box) < 4 {
		return nil
	}
	return Prompt{
		{
			X:     float64(box[0])*pad.Scale + float64(pad.OffsetX),
			Y:     float64(box[1])*pad.Scale + float64(pad.OffsetY),
			Label: LabelBoxTopLeft,
		},
		{
			X:     float64(box[2])*pad.Scale + float64(pad.OffsetX),
			Y:     float64(box[3])*pad.Scale + float64(pad.OffsetY),
			Label: LabelBoxBotRight,
		},
	}
}
