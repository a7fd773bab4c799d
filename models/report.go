package models

import "time"

// ScrapeStatus is the progress snapshot of the external scraper process.
type ScrapeStatus struct {
	IsRunning       bool       `json:"isRunning"`
	Progress        string     `json:"progress"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	LastUpdate      *time.Time `json:"lastUpdate,omitempty"`
	Error           string     `json:"error,omitempty"`
	Completed       bool       `json:"completed"`
	TotalProperties int        `json:"totalProperties,omitempty"`
	// ExitCode is set once the process has exited; -1 when it died without one.
	ExitCode        *int       `json:"exitCode,omitempty"`
	Stopped         bool       `json:"stopped,omitempty"`
}

// Succeeded reports whether the run finished on its own with exit code 0.
func (s ScrapeStatus) Succeeded() bool {
	return s.Completed && !s.Stopped && s.ExitCode != nil && *s.ExitCode == 0
}

// InsightReport holds the computed analytics over the triaged collection.
type InsightReport struct {
	TotalProperties    int
	Unseen             int
	Liked              int
	Disliked           int
	AveragePrice       float64
	MinPrice           int64
	MaxPrice           int64
	MostExpensive      *Property
	Largest            *Property
	PropertiesBySite   map[string]int
	PropertiesByRegion map[string]int
}
