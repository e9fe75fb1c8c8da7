package model

import "time"

// Reputation is a single external source's opinion on a hash/URL/domain.
type Reputation struct {
	Source           string
	Verdict          Verdict
	Confidence       float64
	ReliabilityScore float64
	FirstSeen        *time.Time
	LastSeen         *time.Time
	DetectionNames   []string
	ThreatTypes      []string
	Metadata         map[string]interface{}
	QueryTimeMS      int64
}
