package models

import (
	"strings"
	"time"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
)

// ImportMode selects how existing associations are reconciled.
type ImportMode string

const (
	// ImportModeNew inserts only and skips records that already exist.
	ImportModeNew ImportMode = "new"
	// ImportModeUpdate upserts.
	ImportModeUpdate ImportMode = "update"
	// ImportModeReplace deletes the municipality's associations, then upserts.
	ImportModeReplace ImportMode = "replace"
)

// ParseImportMode is case-insensitive and falls back to update for anything unrecognised.
func ParseImportMode(s string) ImportMode {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case ImportModeNew:
		return ImportModeNew
	case ImportModeReplace:
		return ImportModeReplace
	default:
		return ImportModeUpdate
	}
}

type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// ImportBatch is the ledger row for one pipeline run.
type ImportBatch struct {
	ID             string                   `json:"id" db:"id"`
	MunicipalityID string                   `json:"municipalityId" db:"municipality_id"`
	FileName       string                   `json:"fileName" db:"file_name"`
	FileCount      int                      `json:"fileCount" db:"file_count"`
	ImportMode     ImportMode               `json:"importMode" db:"import_mode"`
	ImportedBy     string                   `json:"importedBy" db:"imported_by"`
	ImportedByName string                   `json:"importedByName" db:"imported_by_name"`
	Status         ImportStatus             `json:"status" db:"status"`
	TotalRecords   int                      `json:"totalRecords" db:"total_records"`
	ImportedCount  int                      `json:"importedCount" db:"imported_count"`
	UpdatedCount   int                      `json:"updatedCount" db:"updated_count"`
	SkippedCount   int                      `json:"skippedCount" db:"skipped_count"`
	ErrorCount     int                      `json:"errorCount" db:"error_count"`
	DeletedCount   int                      `json:"deletedCount" db:"deleted_count"`
	Errors         database.JSONB[[]string] `json:"errors" db:"errors"`
	CreatedAt      time.Time                `json:"createdAt" db:"created_at"`
	CompletedAt    *time.Time               `json:"completedAt" db:"completed_at"`
}

// AddError appends a human-readable error and bumps ErrorCount.
func (b *ImportBatch) AddError(msg string) {
	b.ErrorCount++
	b.Errors.Data = append(b.Errors.Data, msg)
}

// AppendNote appends a message without counting it as a record error.
func (b *ImportBatch) AppendNote(msg string) {
	b.Errors.Data = append(b.Errors.Data, msg)
}

// ImportStats is the result of an import run as returned to callers.
type ImportStats struct {
	BatchID          string       `json:"batchId"`
	MunicipalityID   string       `json:"municipalityId"`
	MunicipalityName string       `json:"municipalityName"`
	FileName         string       `json:"fileName"`
	FileCount        int          `json:"fileCount"`
	ImportMode       ImportMode   `json:"importMode"`
	ImportedBy       string       `json:"importedBy"`
	ImportedByName   string       `json:"importedByName"`
	Status           ImportStatus `json:"status"`
	TotalRecords     int          `json:"totalRecords"`
	ImportedCount    int          `json:"importedCount"`
	UpdatedCount     int          `json:"updatedCount"`
	SkippedCount     int          `json:"skippedCount"`
	ErrorCount       int          `json:"errorCount"`
	DeletedCount     int          `json:"deletedCount"`
	Errors           []string     `json:"errors"`
	CreatedAt        time.Time    `json:"createdAt"`
	CompletedAt      *time.Time   `json:"completedAt"`
}

func NewImportStats(b *ImportBatch, municipalityName string) *ImportStats {
	errs := append(make([]string, 0, len(b.Errors.Data)), b.Errors.Data...)
	return &ImportStats{
		BatchID:          b.ID,
		MunicipalityID:   b.MunicipalityID,
		MunicipalityName: municipalityName,
		FileName:         b.FileName,
		FileCount:        b.FileCount,
		ImportMode:       b.ImportMode,
		ImportedBy:       b.ImportedBy,
		ImportedByName:   b.ImportedByName,
		Status:           b.Status,
		TotalRecords:     b.TotalRecords,
		ImportedCount:    b.ImportedCount,
		UpdatedCount:     b.UpdatedCount,
		SkippedCount:     b.SkippedCount,
		ErrorCount:       b.ErrorCount,
		DeletedCount:     b.DeletedCount,
		Errors:           errs,
		CreatedAt:        b.CreatedAt,
		CompletedAt:      b.CompletedAt,
	}
}

// ImportCheckResult tells the caller whether a municipality already holds associations.
type ImportCheckResult struct {
	HasData          bool    `json:"hasData"`
	Count            int     `json:"count"`
	MunicipalityName string  `json:"municipalityName"`
	MunicipalityID   *string `json:"municipalityId"`
}

type ImportBatchListResponse struct {
	Items      []ImportBatch `json:"items"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
}
