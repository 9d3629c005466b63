package service

import (
	"os"
	"testing"

	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	utils.Logger = zap.NewNop()
	os.Exit(m.Run())
}
