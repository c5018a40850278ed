package services

import (
	"time"

	"drinklog/models"
)

const secondsPerDay = 24 * 60 * 60

// daysBetween counts calendar days from from to t, both UTC midnights. Unix
// seconds avoid the roughly 292 year limit of time.Duration.
func daysBetween(from, t time.Time) int {
	return int((t.Unix() - from.Unix()) / secondsPerDay)
}

// DenseDailyCounts spreads per-day drink counts over every calendar day from
// the first to the last aggregate, filling missing days with 0. daily must be
// sorted by day.
func DenseDailyCounts(daily []models.DailyAggregate) (counts []int, from, to time.Time) {
	if len(daily) == 0 {
		return nil, time.Time{}, time.Time{}
	}
	from = daily[0].Day
	to = daily[len(daily)-1].Day

	counts = make([]int, daysBetween(from, to)+1)
	for _, d := range daily {
		counts[daysBetween(from, d.Day)] += d.Drinks
	}
	return counts, from, to
}

// LongestStreaks walks a dense daily series once and returns the longest run
// of days with drinks and the longest run of days without.
func LongestStreaks(counts []int) (drinking, dry int) {
	var curDrinking, curDry int
	for _, c := range counts {
		if c > 0 {
			curDrinking++
			curDry = 0
		} else {
			curDry++
			curDrinking = 0
		}
		drinking = max(drinking, curDrinking)
		dry = max(dry, curDry)
	}
	return drinking, dry
}

// ComputeStreaks combines DenseDailyCounts and LongestStreaks.
func ComputeStreaks(daily []models.DailyAggregate) models.StreakStats {
	counts, from, to := DenseDailyCounts(daily)
	drinking, dry := LongestStreaks(counts)
	return models.StreakStats{
		LongestDrinking: drinking,
		LongestDry:      dry,
		From:            from,
		To:              to,
		Days:            len(counts),
	}
}
