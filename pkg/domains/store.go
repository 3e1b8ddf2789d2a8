package domains

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Store loads the current restricted root-domain set from external storage.
type Store interface {
	Load() (map[string]struct{}, error)
}

// CSVStore reads restricted domains from a CSV file, one domain in the first
// column of each row. Rows are normalized to root domains on load.
type CSVStore struct {
	path string
}

// NewCSVStore creates a store backed by the given file path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Load reads and normalizes the full restricted set.
func (s *CSVStore) Load() (map[string]struct{}, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open restricted domains file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read restricted domains file: %w", err)
	}

	domains := make(map[string]struct{}, len(records))
	for _, row := range records {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		domains[ExtractRootDomain(row[0])] = struct{}{}
	}

	return domains, nil
}
