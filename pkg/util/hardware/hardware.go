package hardware

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/pkg/log"
)

// GetCPUNum 返回可用的逻辑 CPU 数量，读取失败时退回 runtime.NumCPU。
// 结果不超过 GOMAXPROCS。
func GetCPUNum() int {
	procs := runtime.GOMAXPROCS(0)
	count, err := cpu.Counts(true)
	if err != nil || count <= 0 {
		if err != nil {
			log.Warn("failed to get cpu counts", zap.Error(err))
		}
		count = runtime.NumCPU()
	}
	if procs > 0 && procs < count {
		return procs
	}
	return count
}
