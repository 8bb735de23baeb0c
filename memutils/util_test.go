package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvouk/halloc-go/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "one"))
	require.NoError(t, memutils.CheckPow2(2, "two"))
	require.NoError(t, memutils.CheckPow2(64, "sixty-four"))

	err := memutils.CheckPow2(48, "strange")
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 16))
	require.Equal(t, 16, memutils.AlignUp(1, 16))
	require.Equal(t, 16, memutils.AlignUp(16, 16))
	require.Equal(t, 32, memutils.AlignUp(17, 16))

	require.Equal(t, 0, memutils.AlignDown(15, 16))
	require.Equal(t, 16, memutils.AlignDown(16, 16))
	require.Equal(t, 16, memutils.AlignDown(31, 16))
}

func TestPackedAlignment(t *testing.T) {
	require.Equal(t, 1, memutils.PackedAlignment(0))
	require.Equal(t, 1, memutils.PackedAlignment(1))
	require.Equal(t, 2, memutils.PackedAlignment(2))
	require.Equal(t, 1, memutils.PackedAlignment(3))
	require.Equal(t, 8, memutils.PackedAlignment(8))
	require.Equal(t, 8, memutils.PackedAlignment(24))
	require.Equal(t, 1024, memutils.PackedAlignment(1024))
}

func TestStatisticsAccumulate(t *testing.T) {
	var detailed memutils.DetailedStatistics
	detailed.Clear()

	detailed.AddAllocation(100)
	detailed.AddAllocation(20)
	detailed.AddUnusedRange(50)

	require.Equal(t, 2, detailed.AllocationCount)
	require.Equal(t, 120, detailed.AllocationBytes)
	require.Equal(t, 20, detailed.AllocationSizeMin)
	require.Equal(t, 100, detailed.AllocationSizeMax)
	require.Equal(t, 1, detailed.UnusedRangeCount)
	require.Equal(t, 50, detailed.UnusedRangeSizeMin)
	require.Equal(t, 50, detailed.UnusedRangeSizeMax)

	var other memutils.DetailedStatistics
	other.Clear()
	other.AddAllocation(7)
	other.AddDetailedStatistics(&detailed)

	require.Equal(t, 3, other.AllocationCount)
	require.Equal(t, 127, other.AllocationBytes)
	require.Equal(t, 7, other.AllocationSizeMin)
	require.Equal(t, 100, other.AllocationSizeMax)
}
