package registryparser

import (
	"encoding/csv"
	"fmt"
	"os"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// readTable reads a semicolon-separated registry table. The cleaning stage
// exports Windows-1252, the encoding the regulator uses, so the stream is
// decoded before CSV parsing.
func readTable(filePath string) ([][]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry table %s: %w", filePath, err)
	}
	defer file.Close()

	decoder := transform.NewReader(file, charmap.Windows1252.NewDecoder())

	reader := csv.NewReader(decoder)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1 // validated per row against the header

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read registry table %s: %w", filePath, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("registry table %s has no data rows", filePath)
	}

	return rows, nil
}
