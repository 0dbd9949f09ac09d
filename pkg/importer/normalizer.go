package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/lib/pq"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

const unknownSourceSystem = "unknown"

// NormalizeContext carries the run-level values a record is normalized against.
type NormalizeContext struct {
	MunicipalityID   string
	MunicipalityName string
	ImportBatchID    string
	// ScrapeRunID is the already resolved scrape run, nil when unknown or stale.
	ScrapeRunID *string
	Now         time.Time
}

// NormalizedRecord is a record ready to be written.
type NormalizedRecord struct {
	Association models.Association
	Contacts    []models.Contact
	Sections    []models.DescriptionSection
	// NameKey is "{municipalityId}:{lowercased name}".
	NameKey string
}

// DetailURL returns the record's detail URL or "" when it has none.
func (n *NormalizedRecord) DetailURL() string {
	if n.Association.DetailURL == nil {
		return ""
	}
	return *n.Association.DetailURL
}

// Normalize turns a scraped record into association, contact and section payloads.
// A missing municipality is fatal for the run; a missing name only fails this record.
func Normalize(record models.ScrapedAssociation, nc NormalizeContext) (*NormalizedRecord, error) {
	name := strings.TrimSpace(record.Association.Name)

	if strings.TrimSpace(record.Municipality) == "" {
		return nil, &FatalImportError{Reason: fmt.Sprintf("record %q is missing municipality", name)}
	}
	if name == "" {
		return nil, &RecordError{Reason: "association name is missing"}
	}

	description := decodeDescription(record.Association.Description)

	a := models.Association{
		SourceSystem:        sourceSystem(record.SourceSystem),
		MunicipalityID:      nc.MunicipalityID,
		Municipality:        nc.MunicipalityName,
		ScrapeRunID:         nc.ScrapeRunID,
		ScrapedAt:           scrapedAt(record.ScrapedAt, nc.Now),
		DetailURL:           firstNonBlank(record.Association.DetailURL, record.DetailURL),
		Name:                name,
		OrgNumber:           record.Association.OrgNumber,
		Types:               stringList(record.Association.Types),
		Activities:          stringList(record.Association.Activities),
		Categories:          stringList(record.Association.Categories),
		HomepageURL:         record.Association.HomepageURL,
		StreetAddress:       record.Association.StreetAddress,
		PostalCode:          record.Association.PostalCode,
		City:                record.Association.City,
		Email:               record.Association.Email,
		Phone:               record.Association.Phone,
		Description:         nullableJSON(record.Association.Description),
		DescriptionFreeText: description.FreeText,
		Extras:              nullableJSON(record.Extras),
	}
	if nc.ImportBatchID != "" {
		batchID := nc.ImportBatchID
		a.ImportBatchID = &batchID
	}
	if nav := record.SourceNavigation; nav != nil {
		a.ListPageIndex = nav.ListPageIndex
		a.PositionOnPage = nav.PositionOnPage
		a.PaginationModel = nav.PaginationModel
		a.FilterState = nullableJSON(nav.FilterState)
	}

	return &NormalizedRecord{
		Association: a,
		Contacts:    buildContacts(record.Contacts),
		Sections:    buildSections(description.Sections),
		NameKey:     NameKey(nc.MunicipalityID, name),
	}, nil
}

// NameKey is the in-batch duplicate key for records without a detail URL.
func NameKey(municipalityID, name string) string {
	return fmt.Sprintf("%s:%s", municipalityID, strings.ToLower(strings.TrimSpace(name)))
}

func buildContacts(scraped []models.ScrapedContact) []models.Contact {
	named := ectolinq.Filter(scraped, func(c models.ScrapedContact) bool {
		return strings.TrimSpace(c.Name) != ""
	})

	contacts := make([]models.Contact, 0, len(named))
	for i, c := range named {
		contacts = append(contacts, models.Contact{
			Name:      strings.TrimSpace(c.Name),
			Role:      c.Role,
			Email:     c.Email,
			Phone:     c.Phone,
			IsPrimary: i == 0,
		})
	}
	return contacts
}

func buildSections(scraped []models.ScrapedSection) []models.DescriptionSection {
	sections := make([]models.DescriptionSection, 0, len(scraped))
	for i, s := range scraped {
		title := trimmedOrNil(s.Title)
		if title == nil && !hasData(s.Data) {
			continue
		}
		sections = append(sections, models.DescriptionSection{
			Title:      title,
			Data:       database.JSON(s.Data),
			OrderIndex: i,
		})
	}
	return sections
}

func decodeDescription(raw database.JSON) models.ScrapedDescription {
	var d models.ScrapedDescription
	if raw.IsNull() {
		return d
	}
	// free-form descriptions that are not objects carry neither free text nor sections
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.ScrapedDescription{}
	}
	return d
}

// hasData treats non-empty objects, arrays and strings as content.
func hasData(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	case string:
		return t != ""
	default:
		return false
	}
}

func nullableJSON(raw database.JSON) database.JSON {
	if raw.IsNull() {
		return nil
	}
	return raw
}

func stringList(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func sourceSystem(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknownSourceSystem
	}
	return s
}

func scrapedAt(raw *string, fallback time.Time) time.Time {
	if raw != nil {
		value := strings.TrimSpace(*raw)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC()
			}
		}
	}
	return fallback.UTC()
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonBlank(values ...*string) *string {
	return trimmedOrNil(ectolinq.Find(values, func(v *string) bool {
		return v != nil && strings.TrimSpace(*v) != ""
	}))
}
