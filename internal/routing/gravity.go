package routing

import (
	"math"
	"sort"
)

// Internet Gravity scoring. Each neighbour gets one base class (highest that
// applies) plus a link-quality adjustment; the best-scoring neighbour wins.
const (
	scoreDirect   = 300
	scoreIndirect = 200
	scoreExplore  = 100
	scoreVisited  = 10

	rssiTooClose = -50 // stronger than this is likely an echo or self-loop
	rssiMarginal = -80 // weaker than this is a flaky link

	adjTooClose  = -50
	adjIdealBand = 50
	adjMarginal  = -20
)

func scoreNeighbour(info *NeighbourInfo) int {
	var score int
	switch {
	case info.HasInternetDirect:
		score = scoreDirect
	case info.HasInternetIndirect:
		score = scoreIndirect
	case !info.IsVisited:
		score = scoreExplore
	default:
		score = scoreVisited
	}

	switch {
	case info.RSSI > rssiTooClose:
		score += adjTooClose
	case info.RSSI >= rssiMarginal:
		score += adjIdealBand
	default:
		score += adjMarginal
	}
	return score
}

// GetBestNextHop ranks the neighbour table and returns the winner, or 0 when
// the table is empty. A lone neighbour always wins, even with a negative
// score. Iteration is by ascending node id so ties resolve deterministically.
func (e *Engine) GetBestNextHop() uint32 {
	if len(e.neighbourTable) == 0 {
		return 0
	}

	ids := make([]uint32, 0, len(e.neighbourTable))
	for id := range e.neighbourTable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var bestNodeID uint32
	maxScore := math.MinInt
	for _, id := range ids {
		if score := scoreNeighbour(e.neighbourTable[id]); score > maxScore {
			maxScore = score
			bestNodeID = id
		}
	}
	return bestNodeID
}
