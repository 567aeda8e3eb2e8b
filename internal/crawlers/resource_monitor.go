package crawlers

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 启动浏览器前的系统资源检查
// 内存或CPU紧张时拒绝启动,避免整机被无头浏览器拖垮
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// sample 采样系统状态,测试中可替换
	sample func() (ResourceSample, error)
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	MinFreeMemory    uint64  // 启动浏览器所需的最小可用内存(字节)
	CPULoadThreshold float64 // CPU负载阈值(%),>=200视为禁用
}

// ResourceSample 一次采样结果
type ResourceSample struct {
	TotalMemory     uint64
	AvailableMemory uint64
	CPUPercent      float64
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 可用内存(字节)
	MinFreeMemory   uint64 // 启动浏览器所需的可用内存(字节)
	CPUPercent      float64
	MemoryPressure  string // 内存压力等级
}

// DefaultResourceMonitorConfig 默认配置: 至少300MB可用内存,CPU低于95%
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		MinFreeMemory:    300 * 1024 * 1024,
		CPULoadThreshold: 95,
	}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	return &ResourceMonitor{
		config: config,
		sample: sampleSystem,
	}
}

// sampleSystem 使用gopsutil读取真实的系统内存和CPU
func sampleSystem() (ResourceSample, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	sample := ResourceSample{
		TotalMemory:     vmStat.Total,
		AvailableMemory: vmStat.Available,
	}

	// 100毫秒采样间隔,perCPU=false 返回所有核心的平均值
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if len(percentages) > 0 {
		sample.CPUPercent = percentages[0]
	}

	return sample, nil
}

// CheckResourceAvailability 检查当前资源是否允许启动浏览器
// 返回canLaunch和不允许时的原因
func (rm *ResourceMonitor) CheckResourceAvailability() (canLaunch bool, reason string) {
	sample, err := rm.sample()
	if err != nil {
		// 采样失败时不阻塞渲染
		log.Warn().Err(err).Msg("资源采样失败,跳过检查")
		return true, ""
	}

	if sample.AvailableMemory < rm.config.MinFreeMemory {
		availableMB := sample.AvailableMemory / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),拒绝启动浏览器", availableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 &&
		sample.CPUPercent > rm.config.CPULoadThreshold {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", sample.CPUPercent)
	}

	return true, ""
}

// Guard 资源不足时返回KindResource错误
func (rm *ResourceMonitor) Guard(pageURL string) error {
	if rm == nil {
		return nil
	}
	if ok, reason := rm.CheckResourceAvailability(); !ok {
		return models.NewPipelineError(models.KindResource, pageURL, fmt.Errorf("%s", reason))
	}
	return nil
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() (MemoryStatus, error) {
	sample, err := rm.sample()
	if err != nil {
		return MemoryStatus{}, err
	}

	var pressure string
	availableMB := sample.AvailableMemory / (1024 * 1024)
	minMB := rm.config.MinFreeMemory / (1024 * 1024)
	switch {
	case availableMB < minMB:
		pressure = "critical"
	case availableMB < minMB*2:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     sample.TotalMemory,
		AvailableMemory: sample.AvailableMemory,
		MinFreeMemory:   rm.config.MinFreeMemory,
		CPUPercent:      sample.CPUPercent,
		MemoryPressure:  pressure,
	}, nil
}
