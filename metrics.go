package adblock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequestsChecked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adblock_requests_checked_total",
			Help: "Total number of requests checked against the engine by outcome",
		},
		[]string{"outcome"},
	)

	metricEngineSwaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adblock_engine_swaps_total",
			Help: "Total number of engine client hot-swaps",
		},
	)

	metricRegexDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adblock_regex_discards_total",
			Help: "Total number of explicitly discarded compiled regex rules",
		},
	)

	metricEnabledTags = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adblock_enabled_tags",
			Help: "Number of currently enabled rule-subset tags",
		},
	)
)

// outcomeLabel maps a match result to the label of
// adblock_requests_checked_total.
func outcomeLabel(res MatchResult) (outcome string) {
	switch {
	case res.DidMatchImportant, res.DidMatchRule && !res.DidMatchException:
		return "blocked"
	case res.DidMatchException:
		return "excepted"
	default:
		return "allowed"
	}
}
