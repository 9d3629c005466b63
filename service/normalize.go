package service

import (
	"fmt"

	"github.com/darshanvss/image-clipper/model"
)

// ResampleNearest 最近邻重采样二值掩码
// 目标像素 (x,y) 取源像素 (floor(x*srcW/dstW), floor(y*srcH/dstH))，
// 下标夹在有效范围内；不做插值，二值缓冲区保持二值
func ResampleNearest(data []byte, srcW, srcH, dstW, dstH int) ([]byte, error) {
	if len(data) != srcW*srcH {
		return nil, fmt.Errorf("%w: buffer length %d, expected %d", model.ErrMaskCorrupt, len(data), srcW*srcH)
	}
	if srcW == dstW && srcH == dstH {
		return data, nil
	}

	out := make([]byte, dstW*dstH)
	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		if sy > srcH-1 {
			sy = srcH - 1
		}
		srcRow := sy * srcW
		dstRow := y * dstW
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			if sx > srcW-1 {
				sx = srcW - 1
			}
			out[dstRow+x] = data[srcRow+sx]
		}
	}
	return out, nil
}

// NormalizeMask 把掩码缓冲区重采样到原图分辨率，并重算前景面积
func NormalizeMask(m *model.Mask, srcW, srcH, dstW, dstH int) error {
	data, err := ResampleNearest(m.Data, srcW, srcH, dstW, dstH)
	if err != nil {
		return err
	}

	area := 0
	for _, v := range data {
		if v != 0 {
			area++
		}
	}

	m.Data = data
	m.Area = area
	return nil
}
