package service

import (
	"image"

	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Refiner 对归一化后的掩码做形态学优化：
// 开运算去除细小噪点，闭运算填补孔洞，再轻度模糊平滑锯齿边缘
type Refiner struct {
	kernelSize int
}

func NewRefiner(kernelSize int) *Refiner {
	if kernelSize < 2 {
		kernelSize = 3
	}
	return &Refiner{kernelSize: kernelSize}
}

// Refine 输入输出均为同一分辨率的全幅 0/1 缓冲区
// 任何一步失败都退回原始缓冲区，优化是可选步骤，不允许破坏掩码
func (r *Refiner) Refine(data []byte, w, h int) []byte {
	if len(data) != w*h {
		return data
	}

	buf := make([]byte, len(data))
	for i, v := range data {
		if v != 0 {
			buf[i] = 255
		}
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, buf)
	if err != nil {
		utils.Logger.Warn("failed to build mat from mask", zap.Error(err))
		return data
	}
	defer mat.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: r.kernelSize, Y: r.kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(mat, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(closed, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	final := gocv.NewMat()
	defer final.Close()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)

	refined, err := final.ToBytes()
	if err != nil || len(refined) != len(data) {
		utils.Logger.Warn("failed to read refined mask", zap.Error(err))
		return data
	}

	out := make([]byte, len(refined))
	for i, v := range refined {
		if v > 127 {
			out[i] = 1
		}
	}
	return out
}
