package service

import (
	"sort"

	"github.com/darshanvss/image-clipper/model"
)

// Rank 按分数降序稳定排序，截断到 topN，并按新顺序从 0 重新编号
// 分数相同的掩码保持发现顺序，同一输入的重复请求产出相同的编号
func Rank(masks []model.Mask, topN int) []model.Mask {
	sort.SliceStable(masks, func(i, j int) bool {
		return masks[i].Score > masks[j].Score
	})

	if topN > 0 && len(masks) > topN {
		masks = masks[:topN]
	}

	for i := range masks {
		masks[i].ID = i
	}
	return masks
}
