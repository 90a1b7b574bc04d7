package vad

// Merge folds adjacent intervals when the gap between them is at most maxGap
// seconds and the merged duration stays within maxSegment seconds. The pass is
// greedy left-to-right rather than globally optimal; that keeps the worst-case
// per-segment recognition latency predictable. Merging an already-merged list
// with the same thresholds is a no-op.
func Merge(intervals []Interval, maxGap, maxSegment float64) []Interval {
	merged := make([]Interval, 0, len(intervals))
	if len(intervals) == 0 {
		return merged
	}

	current := intervals[0]
	for _, iv := range intervals[1:] {
		gap := iv.Start - current.End
		combined := iv.End - current.Start
		if gap <= maxGap && combined <= maxSegment {
			current.End = iv.End
			continue
		}
		merged = append(merged, current)
		current = iv
	}
	return append(merged, current)
}
