package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
)

// Association is a municipal non-profit organization.
// Columns tagged "mutable" are rewritten when an import updates an existing row.
type Association struct {
	ID                  string         `json:"id" db:"id"`
	SourceSystem        string         `json:"sourceSystem" db:"source_system" fieldtag:"mutable"`
	MunicipalityID      string         `json:"municipalityId" db:"municipality_id" fieldtag:"mutable"`
	Municipality        string         `json:"municipality" db:"municipality" fieldtag:"mutable"`
	ScrapeRunID         *string        `json:"scrapeRunId" db:"scrape_run_id" fieldtag:"mutable"`
	ScrapedAt           time.Time      `json:"scrapedAt" db:"scraped_at" fieldtag:"mutable"`
	DetailURL           *string        `json:"detailUrl" db:"detail_url" fieldtag:"mutable"`
	Name                string         `json:"name" db:"name" fieldtag:"mutable"`
	OrgNumber           *string        `json:"orgNumber" db:"org_number" fieldtag:"mutable"`
	Types               pq.StringArray `json:"types" db:"types" fieldtag:"mutable"`
	Activities          pq.StringArray `json:"activities" db:"activities" fieldtag:"mutable"`
	Categories          pq.StringArray `json:"categories" db:"categories" fieldtag:"mutable"`
	HomepageURL         *string        `json:"homepageUrl" db:"homepage_url" fieldtag:"mutable"`
	StreetAddress       *string        `json:"streetAddress" db:"street_address" fieldtag:"mutable"`
	PostalCode          *string        `json:"postalCode" db:"postal_code" fieldtag:"mutable"`
	City                *string        `json:"city" db:"city" fieldtag:"mutable"`
	Email               *string        `json:"email" db:"email" fieldtag:"mutable"`
	Phone               *string        `json:"phone" db:"phone" fieldtag:"mutable"`
	Description         database.JSON  `json:"description" db:"description" fieldtag:"mutable"`
	DescriptionFreeText *string        `json:"descriptionFreeText" db:"description_free_text" fieldtag:"mutable"`
	ListPageIndex       *int           `json:"listPageIndex" db:"list_page_index" fieldtag:"mutable"`
	PositionOnPage      *int           `json:"positionOnPage" db:"position_on_page" fieldtag:"mutable"`
	PaginationModel     *string        `json:"paginationModel" db:"pagination_model" fieldtag:"mutable"`
	FilterState         database.JSON  `json:"filterState" db:"filter_state" fieldtag:"mutable"`
	Extras              database.JSON  `json:"extras" db:"extras" fieldtag:"mutable"`
	ImportBatchID       *string        `json:"importBatchId" db:"import_batch_id" fieldtag:"mutable"`
	IsDeleted           bool           `json:"isDeleted" db:"is_deleted" fieldtag:"mutable"`
	DeletedAt           *time.Time     `json:"deletedAt" db:"deleted_at" fieldtag:"mutable"`
	CreatedAt           time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time      `json:"updatedAt" db:"updated_at" fieldtag:"mutable"`

	Contacts            []Contact            `json:"contacts,omitempty" db:"-"`
	DescriptionSections []DescriptionSection `json:"descriptionSections,omitempty" db:"-"`
}

type Contact struct {
	ID            string    `json:"id" db:"id"`
	AssociationID string    `json:"associationId" db:"association_id"`
	Name          string    `json:"name" db:"name"`
	Role          *string   `json:"role" db:"role"`
	Email         *string   `json:"email" db:"email"`
	Phone         *string   `json:"phone" db:"phone"`
	IsPrimary     bool      `json:"isPrimary" db:"is_primary"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

type DescriptionSection struct {
	ID            string        `json:"id" db:"id"`
	AssociationID string        `json:"associationId" db:"association_id"`
	Title         *string       `json:"title" db:"title"`
	Data          database.JSON `json:"data" db:"data"`
	OrderIndex    int           `json:"orderIndex" db:"order_index"`
}

type AssociationListResponse struct {
	Items      []Association `json:"items"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
}
