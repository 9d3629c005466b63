package service

import (
	"errors"
	"testing"

	"github.com/darshanvss/image-clipper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropMapIdentityForSquare(t *testing.T) {
	pm := rectProbMap(0, 0, 8, 8, 0.9)
	pad := PaddedInput{Side: 64, Width: 64, Height: 64}

	out := cropMap(pm, pad)
	assert.Equal(t, pm.Width, out.Width)
	assert.Equal(t, pm.Height, out.Height)
}

func TestCropMapRestoresAspect(t *testing.T) {
	// 32×16 原图补边为 32×32，上下各 8 行补边
	pad := PaddedInput{Side: 32, OffsetX: 0, OffsetY: 8, Width: 32, Height: 16}

	pm := zeroMap(32, 32)
	for y := 8; y < 24; y++ {
		for x := 0; x < 32; x++ {
			pm.Data[y*32+x] = 0.9
		}
	}

	out := cropMap(pm, pad)
	require.Equal(t, 32, out.Width)
	require.Equal(t, 16, out.Height)
	for _, v := range out.Data {
		assert.InDelta(t, 0.9, v, 1e-6)
	}
}

func TestModelProviderCachesFailure(t *testing.T) {
	calls := 0
	p := NewModelProvider(func() (Model, error) {
		calls++
		return nil, errors.New("missing weights")
	})

	_, err1 := p.Acquire()
	_, err2 := p.Acquire()
	assert.ErrorIs(t, err1, model.ErrModelUnavailable)
	assert.ErrorIs(t, err2, model.ErrModelUnavailable)
	assert.Equal(t, 1, calls, "初始化只触发一次，失败结果同样被缓存")
}
