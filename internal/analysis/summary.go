package analysis

import "sort"

// Summary aggregates the predictions of one run
type Summary struct {
	LabelCounts       map[string]int     `json:"label_counts"`
	LabelPercentages  map[string]float64 `json:"label_percentages"`
	Labels            []string           `json:"labels"` // first-seen order
	AverageConfidence float64            `json:"average_confidence"`
	TotalDuration     float64            `json:"total_duration"`
	SegmentCount      int                `json:"segment_count"`
	DominantLabel     string             `json:"dominant_label"`
}

// LabelShare is one row of a label distribution
type LabelShare struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summarize reduces predictions, which must be ordered by start time.
// An empty input yields a zero Summary with empty, non-nil maps.
func Summarize(predictions []Prediction) Summary {
	s := Summary{
		LabelCounts:      make(map[string]int),
		LabelPercentages: make(map[string]float64),
		Labels:           []string{},
	}

	if len(predictions) == 0 {
		return s
	}

	var confidenceSum float64
	for _, p := range predictions {
		if _, seen := s.LabelCounts[p.Label]; !seen {
			s.Labels = append(s.Labels, p.Label)
		}
		s.LabelCounts[p.Label]++
		confidenceSum += p.Confidence
	}

	n := float64(len(predictions))
	best := 0
	for _, label := range s.Labels {
		count := s.LabelCounts[label]
		s.LabelPercentages[label] = float64(count) / n * 100
		// strict comparison keeps the earliest label on ties
		if count > best {
			best = count
			s.DominantLabel = label
		}
	}

	s.SegmentCount = len(predictions)
	s.AverageConfidence = confidenceSum / n
	s.TotalDuration = predictions[len(predictions)-1].End - predictions[0].Start
	return s
}

// Distribution lists labels by descending count, ties in first-seen order
func (s Summary) Distribution() []LabelShare {
	shares := make([]LabelShare, 0, len(s.Labels))
	for _, label := range s.Labels {
		shares = append(shares, LabelShare{
			Label:      label,
			Count:      s.LabelCounts[label],
			Percentage: s.LabelPercentages[label],
		})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Count > shares[j].Count
	})
	return shares
}
