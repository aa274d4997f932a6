// Package report aggregates placement history into accuracy summaries and
// renders them as charts and board snapshots.
package report

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/tangram"
	"github.com/bemo-play/tangram-engine/internal/units"
)

// ClassAccuracy summarises placement error for one piece type across
// completed sessions. Position errors are in board units, rotation in
// degrees for display.
type ClassAccuracy struct {
	ClassID         int     `json:"class_id"`
	Label           string  `json:"label"`
	Count           int     `json:"count"`
	MeanPosition    float64 `json:"mean_position"`
	P50Position     float64 `json:"p50_position"`
	P85Position     float64 `json:"p85_position"`
	P98Position     float64 `json:"p98_position"`
	MeanRotationDeg float64 `json:"mean_rotation_deg"`
}

// AccuracySummary groups placement samples by piece class and computes mean
// and percentile position error plus mean rotation error. Classes with no
// samples are omitted; the result is ordered by class id.
func AccuracySummary(samples []db.PlacementSample) []ClassAccuracy {
	posByClass := make(map[int][]float64)
	rotByClass := make(map[int][]float64)
	for _, s := range samples {
		posByClass[s.ClassID] = append(posByClass[s.ClassID], s.PositionError)
		rotByClass[s.ClassID] = append(rotByClass[s.ClassID], s.RotationError)
	}

	classIDs := make([]int, 0, len(posByClass))
	for id := range posByClass {
		classIDs = append(classIDs, id)
	}
	sort.Ints(classIDs)

	out := make([]ClassAccuracy, 0, len(classIDs))
	for _, id := range classIDs {
		pos := posByClass[id]
		sort.Float64s(pos)
		out = append(out, ClassAccuracy{
			ClassID:         id,
			Label:           classLabel(id),
			Count:           len(pos),
			MeanPosition:    stat.Mean(pos, nil),
			P50Position:     stat.Quantile(0.50, stat.Empirical, pos, nil),
			P85Position:     stat.Quantile(0.85, stat.Empirical, pos, nil),
			P98Position:     stat.Quantile(0.98, stat.Empirical, pos, nil),
			MeanRotationDeg: units.ConvertAngle(stat.Mean(rotByClass[id], nil), units.DEG),
		})
	}
	return out
}

// classLabel resolves a stored class id to its wire name. Rows written by
// older schema versions could carry ids outside the catalog; those keep a
// numeric label rather than failing the whole report.
func classLabel(id int) string {
	pt, err := tangram.PieceTypeFromClassID(id)
	if err != nil {
		return fmt.Sprintf("class_%d", id)
	}
	return pt.String()
}

// DurationBucket is one histogram bin of completed-session durations.
type DurationBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// maxDurationBuckets caps the histogram width; everything beyond the last
// boundary lands in a single overflow bin.
const maxDurationBuckets = 12

// DurationHistogram bins completed-session durations into fixed-width
// buckets. A non-positive width defaults to 30s.
func DurationHistogram(durations []time.Duration, width time.Duration) []DurationBucket {
	if width <= 0 {
		width = 30 * time.Second
	}
	if len(durations) == 0 {
		return nil
	}

	max := durations[0]
	for _, d := range durations {
		if d > max {
			max = d
		}
	}
	n := int(max/width) + 1
	overflow := false
	if n > maxDurationBuckets {
		n = maxDurationBuckets
		overflow = true
	}

	buckets := make([]DurationBucket, n)
	for i := range buckets {
		lo := time.Duration(i) * width
		hi := lo + width
		label := fmt.Sprintf("%s-%s", lo, hi)
		if overflow && i == n-1 {
			label = fmt.Sprintf(">=%s", lo)
		}
		buckets[i].Label = label
	}
	for _, d := range durations {
		i := int(d / width)
		if i >= n {
			i = n - 1
		}
		buckets[i].Count++
	}
	return buckets
}
