package hardware

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCPUNum(t *testing.T) {
	n := GetCPUNum()
	assert.Positive(t, n)
	assert.LessOrEqual(t, n, runtime.GOMAXPROCS(0))
}
