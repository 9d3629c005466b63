package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rectMap 构造一张概率图，矩形区域内取值 p，其余为 0
func rectMap(w, h, x0, y0, rw, rh int, p float32) ProbabilityMap {
	data := make([]float32, w*h)
	for y := y0; y < y0+rh; y++ {
		for x := x0; x < x0+rw; x++ {
			data[y*w+x] = p
		}
	}
	return ProbabilityMap{Width: w, Height: h, Data: data}
}

func TestExtractorBasic(t *testing.T) {
	e := NewExtractor(0.5, 100)

	pm := rectMap(32, 32, 4, 4, 10, 10, 0.8)
	m := e.Extract(pm, 64, 64)
	require.NotNil(t, m)

	assert.Equal(t, 100, m.Area)
	assert.InDelta(t, 0.8, m.Score, 1e-6)
	assert.Len(t, m.Data, 32*32)

	// 边界框换算到原图坐标：原点向下取整，边界向上取整
	assert.Equal(t, 8, m.BBox.X)
	assert.Equal(t, 8, m.BBox.Y)
	assert.Equal(t, 20, m.BBox.Width)
	assert.Equal(t, 20, m.BBox.Height)
}

func TestExtractorAreaFloor(t *testing.T) {
	e := NewExtractor(0.5, 100)

	// 99 个前景像素，低于面积下限
	pm := rectMap(32, 32, 0, 0, 11, 9, 0.9)
	assert.Nil(t, e.Extract(pm, 64, 64))

	// 正好 100 个则保留
	pm = rectMap(32, 32, 0, 0, 10, 10, 0.9)
	assert.NotNil(t, e.Extract(pm, 64, 64))
}

func TestExtractorThresholdIsStrict(t *testing.T) {
	e := NewExtractor(0.5, 1)

	// 概率正好等于阈值的像素不算前景
	pm := rectMap(16, 16, 0, 0, 16, 16, 0.5)
	assert.Nil(t, e.Extract(pm, 16, 16))
}

func TestExtractorScoreIsForegroundMean(t *testing.T) {
	e := NewExtractor(0.5, 1)

	// 一半前景 0.9，一半前景 0.7，背景概率不参与均值
	pm := ProbabilityMap{Width: 4, Height: 2, Data: []float32{
		0.9, 0.9, 0.7, 0.7,
		0.1, 0.1, 0.1, 0.1,
	}}
	m := e.Extract(pm, 4, 2)
	require.NotNil(t, m)
	assert.InDelta(t, 0.8, m.Score, 1e-6)
	assert.Equal(t, 4, m.Area)
}

func TestExtractorBBoxNeverClips(t *testing.T) {
	e := NewExtractor(0.5, 1)

	// 前景贴在右下角，放大后边界框不能越过原图边界
	pm := rectMap(10, 10, 7, 7, 3, 3, 0.9)
	m := e.Extract(pm, 100, 100)
	require.NotNil(t, m)
	assert.Equal(t, 70, m.BBox.X)
	assert.Equal(t, 70, m.BBox.Y)
	assert.Equal(t, 30, m.BBox.Width)
	assert.Equal(t, 30, m.BBox.Height)
	assert.LessOrEqual(t, m.BBox.X+m.BBox.Width, 100)
	assert.LessOrEqual(t, m.BBox.Y+m.BBox.Height, 100)
}
