package engine

// Statistics are counts derived from the current store snapshot on demand;
// the aggregator keeps no state of its own.
type Statistics struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	Read       int              `json:"read"`
	ByType     map[Type]int     `json:"byType"`
	ByPriority map[Priority]int `json:"byPriority"`
}

// ComputeStatistics aggregates counts over a notification snapshot.
func ComputeStatistics(items []Notification) Statistics {
	stats := Statistics{
		ByType:     make(map[Type]int),
		ByPriority: make(map[Priority]int),
	}

	for _, item := range items {
		stats.Total++
		if item.Read {
			stats.Read++
		} else {
			stats.Unread++
		}
		stats.ByType[item.Type]++
		stats.ByPriority[item.Priority]++
	}
	return stats
}
