package models

import "time"

// Municipality is keyed by its unique name. Platform and RegisterURL describe where its
// association registry is scraped from.
type Municipality struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Platform    *string   `json:"platform" db:"platform"`
	RegisterURL *string   `json:"registerUrl" db:"register_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ScrapeRun is one execution of a scraper.
type ScrapeRun struct {
	ID             string     `json:"id" db:"id"`
	MunicipalityID *string    `json:"municipalityId" db:"municipality_id"`
	SourceSystem   *string    `json:"sourceSystem" db:"source_system"`
	Status         string     `json:"status" db:"status"`
	StartedAt      time.Time  `json:"startedAt" db:"started_at"`
	CompletedAt    *time.Time `json:"completedAt" db:"completed_at"`
}
