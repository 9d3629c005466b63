package service

import (
	"image"
	"image/draw"
	"math"
	"sort"

	"github.com/darshanvss/image-clipper/model"
	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
)

// tintAlpha 色相着色的混合强度，只影响 RGB，不影响透明度
const tintAlpha = 0.3

// Compositor 把选中掩码的抠图确定性地合成为单张输出图
type Compositor struct{}

func NewCompositor() *Compositor {
	return &Compositor{}
}

// Composite 执行合成，返回输出图和被跳过的掩码ID
// 选择按ID升序处理，与任何完成顺序无关；
// 单个掩码数据损坏时跳过并继续，不中断整次合成
func (c *Compositor) Composite(spec model.CompositeSpec) (*image.NRGBA, []int, error) {
	if spec.Result == nil || spec.Image == nil {
		return nil, nil, model.ErrInvalidInput
	}

	w := spec.Result.ImageWidth
	h := spec.Result.ImageHeight
	src := utils.ToNRGBA(spec.Image)
	if src.Bounds().Dx() != w || src.Bounds().Dy() != h {
		return nil, nil, model.ErrInvalidInput
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	if spec.ShowBackground {
		draw.Draw(out, out.Bounds(), src, image.Point{}, draw.Src)
	}

	ids := append([]int(nil), spec.Selection...)
	sort.Ints(ids)

	tinted := len(ids) > 1 || !spec.ShowBackground

	var skipped []int
	for _, id := range ids {
		m := findMask(spec.Result, id)
		if m == nil || len(m.Data) != w*h {
			skipped = append(skipped, id)
			utils.Logger.Warn("skipping corrupt or missing mask", zap.Int("mask_id", id))
			continue
		}

		// 独立构建抠图，再从左到右折叠进输出，仅覆盖前景像素
		cutout := buildCutout(src, m, tinted)
		for i, v := range m.Data {
			if v != 0 {
				copy(out.Pix[i*4:i*4+4], cutout.Pix[i*4:i*4+4])
			}
		}
	}

	return out, skipped, nil
}

// buildCutout 单个掩码的抠图：前景取原图像素且完全不透明，其余全透明
// 着色开启时前景 RGB 向掩码ID对应的色相色轻微偏移，便于区分重叠选择
func buildCutout(src *image.NRGBA, m *model.Mask, tinted bool) *image.NRGBA {
	cutout := image.NewNRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))

	var tr, tg, tb float64
	if tinted {
		tr, tg, tb = hueRGB((m.ID * 60) % 360)
	}

	for i, v := range m.Data {
		if v == 0 {
			continue
		}
		o := i * 4
		if tinted {
			cutout.Pix[o] = blend(src.Pix[o], tr)
			cutout.Pix[o+1] = blend(src.Pix[o+1], tg)
			cutout.Pix[o+2] = blend(src.Pix[o+2], tb)
		} else {
			cutout.Pix[o] = src.Pix[o]
			cutout.Pix[o+1] = src.Pix[o+1]
			cutout.Pix[o+2] = src.Pix[o+2]
		}
		cutout.Pix[o+3] = 255
	}
	return cutout
}

func blend(orig uint8, tint float64) uint8 {
	return uint8(math.Round(float64(orig)*(1-tintAlpha) + tint*255*tintAlpha))
}

// hueRGB 色相角 [0,360) 生成全饱和全亮度的 RGB，分量取值 [0,1]
func hueRGB(deg int) (float64, float64, float64) {
	hp := float64(deg) / 60.0
	x := 1 - math.Abs(math.Mod(hp, 2)-1)
	switch {
	case hp < 1:
		return 1, x, 0
	case hp < 2:
		return x, 1, 0
	case hp < 3:
		return 0, 1, x
	case hp < 4:
		return 0, x, 1
	case hp < 5:
		return x, 0, 1
	default:
		return 1, 0, x
	}
}

func findMask(result *model.SegmentationResult, id int) *model.Mask {
	for i := range result.Masks {
		if result.Masks[i].ID == id {
			return &result.Masks[i]
		}
	}
	return nil
}
