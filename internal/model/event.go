package model

import "time"

// Event is a feed entry after field resolution.
type Event struct {
	ID       string
	Title    string
	Start    *time.Time
	End      *time.Time
	HasClock bool
	Time     string
	Location string
	Price    *float64
	ImageURL string
	Slug     string
	URL      string
}

// MediaEntry maps a source image URL to an uploaded platform media id.
type MediaEntry struct {
	SourceURL string    `json:"sourceUrl"`
	MediaID   string    `json:"mediaId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
