package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FixtureFile is one uploaded scrape output file.
type FixtureFile struct {
	Name    string
	Content []byte
}

// ParseFixture decodes a JSON array, a single JSON object, or JSON-Lines when the file name
// ends in .jsonl. Blank content yields no records.
func ParseFixture(fileName string, content []byte) ([]models.ScrapedAssociation, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if strings.HasSuffix(strings.ToLower(fileName), ".jsonl") {
		// split untrimmed so line numbers match the file
		return parseJSONLines(fileName, content)
	}

	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return []models.ScrapedAssociation{}, nil
	}

	switch content[0] {
	case '[':
		records := []models.ScrapedAssociation{}
		if err := json.Unmarshal(content, &records); err != nil {
			return nil, &ParseError{FileName: fileName, Err: err}
		}
		return records, nil
	case '{':
		var record models.ScrapedAssociation
		if err := json.Unmarshal(content, &record); err != nil {
			return nil, &ParseError{FileName: fileName, Err: err}
		}
		return []models.ScrapedAssociation{record}, nil
	default:
		return nil, &ParseError{FileName: fileName, Err: errors.New("expected a JSON array or object")}
	}
}

func parseJSONLines(fileName string, content []byte) ([]models.ScrapedAssociation, error) {
	records := []models.ScrapedAssociation{}
	for i, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var record models.ScrapedAssociation
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, &ParseError{FileName: fileName, Line: i + 1, Err: err}
		}
		records = append(records, record)
	}
	return records, nil
}

// ParseFixtures parses every file in order and concatenates their records. The first file
// that fails to parse fails the whole call.
func ParseFixtures(files []FixtureFile) ([]models.ScrapedAssociation, error) {
	all := []models.ScrapedAssociation{}
	for _, file := range files {
		records, err := ParseFixture(file.Name, file.Content)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
