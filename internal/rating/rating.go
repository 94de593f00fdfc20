// Package rating derives IPCR ratings from accomplishment counters.
// Ratings are never stored; callers compute them from current counters on every read.
package rating

import "math"

// Counter is the minimal input the rating functions need.
type Counter struct {
	Target       int
	Accomplished int
}

// Rate maps a target/accomplished pair onto the 0..5 scale.
// A zero target means the category is not tracked and rates 0.
func Rate(target, accomplished int) int {
	if target <= 0 {
		return 0
	}
	ratio := float64(accomplished) / float64(target)
	switch {
	case ratio >= 1.0:
		return 5
	case ratio >= 0.8:
		return 4
	case ratio >= 0.6:
		return 3
	case ratio >= 0.4:
		return 2
	default:
		return 1
	}
}

// Overall averages Rate over tracked counters only. Counters with a zero
// target are left out of both sum and count; with nothing tracked the result is 0.
func Overall(counters []Counter) float64 {
	sum, tracked := 0, 0
	for _, c := range counters {
		if c.Target <= 0 {
			continue
		}
		sum += Rate(c.Target, c.Accomplished)
		tracked++
	}
	if tracked == 0 {
		return 0
	}
	return float64(sum) / float64(tracked)
}

// Round2 rounds a rating for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
