package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/darshanvss/image-clipper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(10 + x*7),
				G: uint8(20 + y*5),
				B: 90,
				A: 255,
			})
		}
	}
	return img
}

// leftHalfMask 覆盖左半边的全幅掩码
func leftHalfMask(id, w, h int) model.Mask {
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			data[y*w+x] = 1
		}
	}
	return model.Mask{ID: id, Score: 0.9, Data: data}
}

func TestCompositeEmptySelectionShowBackground(t *testing.T) {
	src := testImage(10, 10)
	result := &model.SegmentationResult{ImageWidth: 10, ImageHeight: 10}

	out, skipped, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		ShowBackground: true,
	})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	// 原图逐像素不变
	assert.Equal(t, src.Pix, out.Pix)
}

func TestCompositeEmptySelectionHiddenBackground(t *testing.T) {
	src := testImage(10, 10)
	result := &model.SegmentationResult{ImageWidth: 10, ImageHeight: 10}

	out, _, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		ShowBackground: false,
	})
	require.NoError(t, err)

	for i := 3; i < len(out.Pix); i += 4 {
		assert.Equal(t, uint8(0), out.Pix[i], "空选择且隐藏背景时输出必须全透明")
	}
}

func TestCompositeLeftHalfAlpha(t *testing.T) {
	src := testImage(10, 10)
	result := &model.SegmentationResult{
		Masks:       []model.Mask{leftHalfMask(0, 10, 10)},
		ImageWidth:  10,
		ImageHeight: 10,
	}

	out, skipped, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		Selection:      []int{0},
		ShowBackground: false,
	})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			alpha := out.Pix[(y*10+x)*4+3]
			if x < 5 {
				assert.Equal(t, uint8(255), alpha, "x=%d y=%d", x, y)
			} else {
				assert.Equal(t, uint8(0), alpha, "x=%d y=%d", x, y)
			}
		}
	}
}

func TestCompositeTintNeverChangesAlpha(t *testing.T) {
	src := testImage(10, 10)
	m0 := leftHalfMask(0, 10, 10)
	m1 := leftHalfMask(1, 10, 10)
	// 两个掩码重叠，触发着色
	result := &model.SegmentationResult{
		Masks:       []model.Mask{m0, m1},
		ImageWidth:  10,
		ImageHeight: 10,
	}

	out, _, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		Selection:      []int{0, 1},
		ShowBackground: true,
	})
	require.NoError(t, err)

	for i := 3; i < len(out.Pix); i += 4 {
		assert.Equal(t, uint8(255), out.Pix[i], "显示背景时所有像素不透明")
	}

	// 未被掩码覆盖的区域保持原图 RGB
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			o := (y*10 + x) * 4
			assert.Equal(t, src.Pix[o], out.Pix[o])
			assert.Equal(t, src.Pix[o+1], out.Pix[o+1])
			assert.Equal(t, src.Pix[o+2], out.Pix[o+2])
		}
	}
}

func TestCompositeSingleMaskWithBackgroundNotTinted(t *testing.T) {
	src := testImage(10, 10)
	result := &model.SegmentationResult{
		Masks:       []model.Mask{leftHalfMask(0, 10, 10)},
		ImageWidth:  10,
		ImageHeight: 10,
	}

	out, _, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		Selection:      []int{0},
		ShowBackground: true,
	})
	require.NoError(t, err)

	// 单掩码且显示背景：不着色，输出与原图一致
	assert.Equal(t, src.Pix, out.Pix)
}

func TestCompositeSkipsCorruptMask(t *testing.T) {
	src := testImage(10, 10)
	good := leftHalfMask(0, 10, 10)
	corrupt := model.Mask{ID: 1, Score: 0.8, Data: []byte{1, 1, 1}} // 长度错误

	result := &model.SegmentationResult{
		Masks:       []model.Mask{good, corrupt},
		ImageWidth:  10,
		ImageHeight: 10,
	}

	out, skipped, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		Selection:      []int{0, 1},
		ShowBackground: false,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, skipped)

	// 好掩码仍然生效
	assert.Equal(t, uint8(255), out.Pix[3])
}

func TestCompositeUnknownIDSkipped(t *testing.T) {
	src := testImage(4, 4)
	result := &model.SegmentationResult{ImageWidth: 4, ImageHeight: 4}

	out, skipped, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		Selection:      []int{7},
		ShowBackground: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, skipped)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestCompositeRejectsMismatchedImage(t *testing.T) {
	src := testImage(4, 4)
	result := &model.SegmentationResult{ImageWidth: 10, ImageHeight: 10}

	_, _, err := NewCompositor().Composite(model.CompositeSpec{
		Image:          src,
		Result:         result,
		ShowBackground: true,
	})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
