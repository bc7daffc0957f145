package core

// DayReport is one calendar day of a weekly report. Records maps project
// name to elapsed seconds; projects without activity that day are absent.
type DayReport struct {
	Date    Date             `json:"date"`
	Records map[string]int64 `json:"records"`
	Total   int64            `json:"total"`
}

// WeekReport is the seven-day aggregate for one ISO week. Projects is the
// sorted union of project names appearing on any day; Category is set
// only when the report was filtered.
type WeekReport struct {
	WeekNumber string      `json:"week_number"`
	Category   string      `json:"category,omitempty"`
	Days       []DayReport `json:"days"`
	Projects   []string    `json:"projects"`
}
