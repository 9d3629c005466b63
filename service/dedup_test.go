package service

import (
	"testing"

	"github.com/darshanvss/image-clipper/model"
	"github.com/stretchr/testify/assert"
)

func TestIoUIdentical(t *testing.T) {
	a := []byte{1, 1, 0, 0, 1, 0}
	b := []byte{1, 1, 0, 0, 1, 0}
	assert.Equal(t, 1.0, IoU(a, b))
}

func TestIoUDisjoint(t *testing.T) {
	a := []byte{1, 1, 0, 0}
	b := []byte{0, 0, 1, 1}
	assert.Equal(t, 0.0, IoU(a, b))
}

func TestIoUSymmetric(t *testing.T) {
	a := []byte{1, 1, 1, 0, 0, 0, 1, 0}
	b := []byte{0, 1, 1, 1, 0, 0, 0, 1}
	assert.Equal(t, IoU(a, b), IoU(b, a))
}

func TestIoUPartialOverlap(t *testing.T) {
	// 交 1，并 3
	a := []byte{1, 1, 0}
	b := []byte{0, 1, 1}
	assert.InDelta(t, 1.0/3.0, IoU(a, b), 1e-9)
}

func TestIoUMismatchedLength(t *testing.T) {
	// 分辨率不一致视为不可比较
	a := []byte{1, 1}
	b := []byte{1, 1, 1}
	assert.Equal(t, 0.0, IoU(a, b))
}

func TestIoUEmptyUnion(t *testing.T) {
	a := []byte{0, 0, 0}
	b := []byte{0, 0, 0}
	assert.Equal(t, 0.0, IoU(a, b))
}

func TestDeduplicatorDropsDuplicate(t *testing.T) {
	d := NewDeduplicator(0.5)

	square := make([]byte, 100*100)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			square[y*100+x] = 1
		}
	}

	m1 := model.Mask{Score: 0.9, Data: square}
	m2 := model.Mask{Score: 0.95, Data: append([]byte(nil), square...)}

	accepted := []model.Mask{m1}
	assert.False(t, d.Accept(&m2, accepted), "完全重合的掩码必须被去重")
}

func TestDeduplicatorKeepsDistinct(t *testing.T) {
	d := NewDeduplicator(0.5)

	left := []byte{1, 1, 0, 0}
	right := []byte{0, 0, 1, 1}

	accepted := []model.Mask{{Data: left}}
	assert.True(t, d.Accept(&model.Mask{Data: right}, accepted))
}

func TestDeduplicatorChecksAllAccepted(t *testing.T) {
	d := NewDeduplicator(0.5)

	a := []byte{1, 1, 0, 0}
	b := []byte{0, 0, 1, 1}
	dup := []byte{0, 0, 1, 1}

	accepted := []model.Mask{{Data: a}, {Data: b}}
	assert.False(t, d.Accept(&model.Mask{Data: dup}, accepted))
}
