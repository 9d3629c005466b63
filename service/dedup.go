package service

import "github.com/darshanvss/image-clipper/model"

// IoU 两个等长二值缓冲区的交并比，长度不一致视为不可比较返回 0
// 调用方必须先把掩码归一到同一分辨率，否则真正的重复掩码会被放行
func IoU(a, b []byte) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	intersection := 0
	union := 0
	for i := range a {
		af := a[i] != 0
		bf := b[i] != 0
		if af && bf {
			intersection++
		}
		if af || bf {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Deduplicator 基于两两 IoU 去除近似重复掩码
type Deduplicator struct {
	threshold float64
}

func NewDeduplicator(threshold float64) *Deduplicator {
	return &Deduplicator{threshold: threshold}
}

// Accept 新掩码与所有已接受掩码的 IoU 均不超过阈值时才接受
func (d *Deduplicator) Accept(candidate *model.Mask, accepted []model.Mask) bool {
	for i := range accepted {
		if IoU(candidate.Data, accepted[i].Data) > d.threshold {
			return false
		}
	}
	return true
}
