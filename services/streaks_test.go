package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinklog/models"
)

func TestLongestStreaks(t *testing.T) {
	tests := []struct {
		counts   []int
		drinking int
		dry      int
	}{
		{[]int{1, 0, 0, 1, 1, 1, 0}, 3, 2},
		{nil, 0, 0},
		{[]int{0, 0, 0}, 0, 3},
		{[]int{2, 5, 1}, 3, 0},
		{[]int{0, 1, 0, 1, 0}, 1, 1},
	}
	for _, tt := range tests {
		drinking, dry := LongestStreaks(tt.counts)
		assert.Equal(t, tt.drinking, drinking, "drinking streak of %v", tt.counts)
		assert.Equal(t, tt.dry, dry, "dry streak of %v", tt.counts)
	}
}

func dayOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDenseDailyCountsFillsGaps(t *testing.T) {
	daily := []models.DailyAggregate{
		{Day: dayOf(2025, 1, 30), Drinks: 2},
		{Day: dayOf(2025, 2, 2), Drinks: 1},
		{Day: dayOf(2025, 2, 3), Drinks: 4},
	}

	counts, from, to := DenseDailyCounts(daily)
	assert.Equal(t, []int{2, 0, 0, 1, 4}, counts)
	assert.Equal(t, dayOf(2025, 1, 30), from)
	assert.Equal(t, dayOf(2025, 2, 3), to)
}

func TestComputeStreaks(t *testing.T) {
	daily := []models.DailyAggregate{
		{Day: dayOf(2025, 3, 1), Drinks: 1},
		{Day: dayOf(2025, 3, 4), Drinks: 1},
		{Day: dayOf(2025, 3, 5), Drinks: 3},
		{Day: dayOf(2025, 3, 6), Drinks: 1},
	}

	s := ComputeStreaks(daily)
	assert.Equal(t, 3, s.LongestDrinking)
	assert.Equal(t, 2, s.LongestDry)
	assert.Equal(t, 6, s.Days)

	empty := ComputeStreaks(nil)
	assert.Zero(t, empty.Days)
	assert.Zero(t, empty.LongestDrinking)
}

func TestDenseDailyCountsAcrossCenturies(t *testing.T) {
	daily := []models.DailyAggregate{
		{Day: dayOf(1700, 1, 1), Drinks: 1},
		{Day: dayOf(2025, 1, 1), Drinks: 1},
		{Day: dayOf(2025, 1, 2), Drinks: 1},
	}

	counts, from, to := DenseDailyCounts(daily)
	require.NotEmpty(t, counts)
	assert.Equal(t, dayOf(1700, 1, 1), from)
	assert.Equal(t, dayOf(2025, 1, 2), to)
	assert.Equal(t, []int{1, 1}, counts[len(counts)-2:])
	assert.Equal(t, 1, counts[0])

	stats := ComputeStreaks(daily)
	assert.Equal(t, 2, stats.LongestDrinking)
	assert.Equal(t, len(counts), stats.Days)
}
