package crawlers

import (
	"errors"
	"testing"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func monitorWithSample(config ResourceMonitorConfig, sample ResourceSample, err error) *ResourceMonitor {
	rm := NewResourceMonitor(config)
	rm.sample = func() (ResourceSample, error) { return sample, err }
	return rm
}

func TestResourceMonitor_CheckResourceAvailability(t *testing.T) {
	config := DefaultResourceMonitorConfig()

	tests := []struct {
		name   string
		sample ResourceSample
		err    error
		want   bool
	}{
		{"资源充足", ResourceSample{TotalMemory: 8192 * mb, AvailableMemory: 4096 * mb, CPUPercent: 20}, nil, true},
		{"内存不足", ResourceSample{TotalMemory: 8192 * mb, AvailableMemory: 100 * mb, CPUPercent: 20}, nil, false},
		{"CPU过高", ResourceSample{TotalMemory: 8192 * mb, AvailableMemory: 4096 * mb, CPUPercent: 99}, nil, false},
		{"采样失败不阻塞", ResourceSample{}, errors.New("no /proc"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := monitorWithSample(config, tt.sample, tt.err)
			ok, reason := rm.CheckResourceAvailability()
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestResourceMonitor_CPUCheckDisabled(t *testing.T) {
	config := ResourceMonitorConfig{MinFreeMemory: 100 * mb, CPULoadThreshold: 200}
	rm := monitorWithSample(config, ResourceSample{AvailableMemory: 1024 * mb, CPUPercent: 100}, nil)

	ok, _ := rm.CheckResourceAvailability()
	assert.True(t, ok)
}

func TestResourceMonitor_Guard(t *testing.T) {
	rm := monitorWithSample(DefaultResourceMonitorConfig(), ResourceSample{AvailableMemory: 10 * mb}, nil)

	err := rm.Guard("https://example.com")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindResource))

	var nilMonitor *ResourceMonitor
	assert.NoError(t, nilMonitor.Guard("https://example.com"))
}

func TestResourceMonitor_GetMemoryStatus(t *testing.T) {
	config := DefaultResourceMonitorConfig()

	status, err := monitorWithSample(config, ResourceSample{TotalMemory: 8192 * mb, AvailableMemory: 500 * mb}, nil).GetMemoryStatus()
	require.NoError(t, err)
	assert.Equal(t, "warning", status.MemoryPressure)

	status, err = monitorWithSample(config, ResourceSample{TotalMemory: 8192 * mb, AvailableMemory: 4096 * mb}, nil).GetMemoryStatus()
	require.NoError(t, err)
	assert.Equal(t, "normal", status.MemoryPressure)
	assert.Equal(t, uint64(8192*mb), status.TotalMemory)
}
