package service

import (
	"testing"

	"github.com/darshanvss/image-clipper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCodecRoundTrip(t *testing.T) {
	result := &model.SegmentationResult{
		Masks: []model.Mask{
			{ID: 0, Score: 0.95, BBox: model.BBox{X: 1, Y: 2, Width: 3, Height: 4}, Data: []byte{1, 0, 1, 1}, Area: 3},
			{ID: 1, Score: 0.6, BBox: model.BBox{X: 0, Y: 0, Width: 2, Height: 2}, Data: []byte{0, 1, 0, 0}, Area: 1},
		},
		ImageWidth:  2,
		ImageHeight: 2,
		Timestamp:   1724966400,
	}

	data, err := marshalResult(result)
	require.NoError(t, err)

	got, err := unmarshalResult(data)
	require.NoError(t, err)

	// 掩码编号、顺序、缓冲区经缓存往返后逐项一致
	assert.Equal(t, result, got)
}

func TestCacheCodecBadPayload(t *testing.T) {
	_, err := unmarshalResult([]byte("not json"))
	assert.Error(t, err)
}
