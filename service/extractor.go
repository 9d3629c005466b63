package service

import (
	"math"

	"github.com/darshanvss/image-clipper/model"
)

// Extractor 把单张概率图转换为二值掩码、边界框和置信度
type Extractor struct {
	threshold float64
	minArea   int
}

func NewExtractor(threshold float64, minArea int) *Extractor {
	return &Extractor{threshold: threshold, minArea: minArea}
}

// Extract 二值化概率图并计算掩码元数据
// 前景像素数低于面积下限时返回 nil，表示该掩码被丢弃；
// 掩码缓冲区为模型分辨率的全幅 0/1，边界框按比例换算到原图坐标，
// 原点向下取整、边界向上取整，保证缩放后的框始终完整覆盖前景区域；
// 置信度为前景像素上的平均概率
func (e *Extractor) Extract(pm ProbabilityMap, imgW, imgH int) *model.Mask {
	data := make([]byte, pm.Width*pm.Height)

	area := 0
	sum := 0.0
	minX, minY := pm.Width, pm.Height
	maxX, maxY := -1, -1

	for y := 0; y < pm.Height; y++ {
		row := y * pm.Width
		for x := 0; x < pm.Width; x++ {
			p := float64(pm.Data[row+x])
			if p > e.threshold {
				data[row+x] = 1
				area++
				sum += p
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if area < e.minArea {
		return nil
	}

	scaleX := float64(imgW) / float64(pm.Width)
	scaleY := float64(imgH) / float64(pm.Height)

	x0 := int(math.Floor(float64(minX) * scaleX))
	y0 := int(math.Floor(float64(minY) * scaleY))
	x1 := int(math.Ceil(float64(maxX+1) * scaleX))
	y1 := int(math.Ceil(float64(maxY+1) * scaleY))
	if x1 > imgW {
		x1 = imgW
	}
	if y1 > imgH {
		y1 = imgH
	}

	return &model.Mask{
		Score: sum / float64(area),
		BBox: model.BBox{
			X:      x0,
			Y:      y0,
			Width:  x1 - x0,
			Height: y1 - y0,
		},
		Data: data,
		Area: area,
	}
}
