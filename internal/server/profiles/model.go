// Package profiles implements the leaderboard profile store: one entry per
// username, refreshed by joins and by the background sweep.
package profiles

import (
	"math"
	"sort"
	"strings"
	"time"
)

// MaxScore bounds the stored words-per-minute value; upstream noise above
// it is clamped away.
const MaxScore = 500

// Profile is one leaderboard row. Username is a soft reference to the
// credential store and may dangle; the sweep drops orphans.
type Profile struct {
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Region    string    `json:"region"`
}

// ClampScore folds an upstream score into [0, MaxScore], rounded to the
// nearest integer.
func ClampScore(wpm float64) int {
	score := int(math.Round(wpm))
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ClampAccuracy folds an upstream accuracy into [0, 100] with two-decimal
// precision.
func ClampAccuracy(acc float64) float64 {
	if acc < 0 {
		acc = 0
	}
	if acc > 100 {
		acc = 100
	}
	return math.Round(acc*100) / 100
}

// SortLeaderboard orders profiles for rendering: score descending, ties by
// accuracy descending, remaining ties by timestamp descending (most recent
// first).
func SortLeaderboard(list []Profile) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if list[i].Accuracy != list[j].Accuracy {
			return list[i].Accuracy > list[j].Accuracy
		}
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

// SameUsername compares usernames the way the store keys them.
func SameUsername(a, b string) bool {
	return strings.EqualFold(a, b)
}
