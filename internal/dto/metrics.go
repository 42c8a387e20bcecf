package dto

import "time"

// MetricsSnapshot is a JSON summary of the Prometheus counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	OrdersGenerated          uint64    `json:"ordersGenerated"`
	StatusTransitions        uint64    `json:"statusTransitions"`
	RankingRecomputes        uint64    `json:"rankingRecomputes"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
