package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
)

// ScrapedAssociation is one record as produced by the municipality scrapers.
type ScrapedAssociation struct {
	SourceSystem     string                 `json:"source_system"`
	Municipality     string                 `json:"municipality"`
	ScrapeRunID      *string                `json:"scrape_run_id,omitempty"`
	ScrapedAt        *string                `json:"scraped_at,omitempty"`
	Association      ScrapedAssociationBody `json:"association"`
	Contacts         []ScrapedContact       `json:"contacts,omitempty"`
	DetailURL        *string                `json:"detail_url,omitempty"`
	SourceNavigation *SourceNavigation      `json:"source_navigation,omitempty"`
	Extras           database.JSON          `json:"extras,omitempty"`
}

type ScrapedAssociationBody struct {
	Name          string        `json:"name"`
	OrgNumber     *string       `json:"org_number,omitempty"`
	Types         []string      `json:"types,omitempty"`
	Activities    []string      `json:"activities,omitempty"`
	Categories    []string      `json:"categories,omitempty"`
	HomepageURL   *string       `json:"homepage_url,omitempty"`
	DetailURL     *string       `json:"detail_url,omitempty"`
	StreetAddress *string       `json:"street_address,omitempty"`
	PostalCode    *string       `json:"postal_code,omitempty"`
	City          *string       `json:"city,omitempty"`
	Email         *string       `json:"email,omitempty"`
	Phone         *string       `json:"phone,omitempty"`
	Description   database.JSON `json:"description,omitempty"`
}

// ScrapedDescription is the structured view of ScrapedAssociationBody.Description.
type ScrapedDescription struct {
	FreeText *string          `json:"free_text,omitempty"`
	Sections []ScrapedSection `json:"sections,omitempty"`
}

type ScrapedSection struct {
	Title *string         `json:"title"`
	Data  json.RawMessage `json:"data"`
}

type ScrapedContact struct {
	Name  string  `json:"contact_person_name"`
	Role  *string `json:"contact_person_role,omitempty"`
	Email *string `json:"contact_person_email,omitempty"`
	Phone *string `json:"contact_person_phone,omitempty"`
}

type SourceNavigation struct {
	ListPageIndex   *int          `json:"list_page_index,omitempty"`
	PositionOnPage  *int          `json:"position_on_page,omitempty"`
	PaginationModel *string       `json:"pagination_model,omitempty"`
	FilterState     database.JSON `json:"filter_state,omitempty"`
}

// UnmarshalJSON accepts numbers or numeric strings for the position fields. A value of the
// wrong shape is dropped to nil instead of failing the record.
func (n *SourceNavigation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*n = SourceNavigation{}
		return nil
	}

	*n = SourceNavigation{
		ListPageIndex:   lenientInt(raw["list_page_index"]),
		PositionOnPage:  lenientInt(raw["position_on_page"]),
		PaginationModel: lenientString(raw["pagination_model"]),
	}
	if filter, ok := raw["filter_state"]; ok && json.Valid(filter) {
		n.FilterState = database.JSON(filter)
	}
	return nil
}

func lenientInt(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return nil
		}
		v := int(f)
		return &v
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &v
		}
	}
	return nil
}

func lenientString(raw json.RawMessage) *string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}
