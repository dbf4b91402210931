package events

import "time"

type RankingCompletedEvent struct {
	RunID       string    `json:"run_id"`
	NetworkType string    `json:"network_type,omitempty"`
	Pressure    string    `json:"pressure,omitempty"`
	Materials   []string  `json:"materials"`
	Criteria    []string  `json:"criteria"`
	Winner      string    `json:"winner,omitempty"`
	Degenerate  int       `json:"degenerate"`
	Timestamp   time.Time `json:"timestamp"`
}

type RankingRejectedEvent struct {
	RunID     string    `json:"run_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
