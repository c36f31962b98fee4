// Package registryparser loads the cleaned national drug registry table
// produced by the external ingestion stage into typed MedicationRecord
// values. The input contract is a finite, de-duplicated, schema-conformant
// table; duplicate CUMs or missing columns abort the load.
package registryparser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/registryparser/entities"
)

// The standardized column names of the cleaned table.
var requiredColumns = []string{
	"CUM",
	"EXPEDIENTE",
	"PRODUCTO",
	"PRINCIPIO ACTIVO",
	"ATC",
	"DESCRIPCION ATC",
	"FORMA FARMACEUTICA",
	"VIA ADMINISTRACION",
	"UNIDAD MEDIDA",
	"CANTIDAD",
	"CANTIDAD CUM",
	"ESTADO REGISTRO",
	"ESTADO CUM",
	"MUESTRA MEDICA",
	"COBERTURA PBS",
	"FECHA EXPIRACION",
}

const dateLayout = "2006-01-02"

// ParseRegistryFile loads, decodes and types the cleaned registry table.
func ParseRegistryFile(filePath string) ([]entities.MedicationRecord, error) {
	rows, err := readTable(filePath)
	if err != nil {
		return nil, err
	}

	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("registry table %s: %w", filePath, err)
	}

	records := make([]entities.MedicationRecord, 0, len(rows)-1)
	seen := make(map[string]bool, len(rows)-1)

	for line, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("registry table %s line %d: %d fields, want %d", filePath, line+2, len(row), len(rows[0]))
		}

		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("registry table %s line %d: %w", filePath, line+2, err)
		}
		if seen[rec.CUM] {
			// The ingestion stage guarantees de-duplication; a repeat
			// means the input contract is broken.
			return nil, fmt.Errorf("registry table %s line %d: duplicate CUM %s", filePath, line+2, rec.CUM)
		}
		seen[rec.CUM] = true
		records = append(records, rec)
	}

	logging.Info("Registry table loaded", "file", filePath, "records", len(records))
	return records, nil
}

// columnIndex maps the required column names to their header positions.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeCategory(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return index, nil
}

func parseRow(row []string, index map[string]int) (entities.MedicationRecord, error) {
	get := func(col string) string { return strings.TrimSpace(row[index[col]]) }

	cum := get("CUM")
	if cum == "" {
		return entities.MedicationRecord{}, fmt.Errorf("empty CUM")
	}

	quantity, err := parseQuantity(get("CANTIDAD"))
	if err != nil {
		return entities.MedicationRecord{}, fmt.Errorf("CUM %s: CANTIDAD: %w", cum, err)
	}
	refQuantity, err := parseQuantity(get("CANTIDAD CUM"))
	if err != nil {
		return entities.MedicationRecord{}, fmt.Errorf("CUM %s: CANTIDAD CUM: %w", cum, err)
	}

	var expiration time.Time
	if raw := get("FECHA EXPIRACION"); raw != "" {
		expiration, err = time.Parse(dateLayout, raw)
		if err != nil {
			return entities.MedicationRecord{}, fmt.Errorf("CUM %s: FECHA EXPIRACION: %w", cum, err)
		}
	}

	return entities.MedicationRecord{
		CUM:                cum,
		Expediente:         get("EXPEDIENTE"),
		Product:            get("PRODUCTO"),
		ActiveIngredient:   normalizeCategory(get("PRINCIPIO ACTIVO")),
		ATC:                normalizeCategory(get("ATC")),
		ATCDescription:     get("DESCRIPCION ATC"),
		PharmaceuticalForm: normalizeCategory(get("FORMA FARMACEUTICA")),
		Route:              normalizeCategory(get("VIA ADMINISTRACION")),
		Unit:               normalizeCategory(get("UNIDAD MEDIDA")),
		Quantity:           quantity,
		ReferenceQuantity:  refQuantity,
		RegistrationStatus: normalizeCategory(get("ESTADO REGISTRO")),
		CUMStatus:          normalizeCategory(get("ESTADO CUM")),
		MedicalSample:      parseFlag(get("MUESTRA MEDICA")),
		CoveredPBS:         parseFlag(get("COBERTURA PBS")),
		ExpirationDate:     expiration,
	}, nil
}

// normalizeCategory standardizes categorical values so frequency counting
// is not split by casing or stray whitespace. Free-text normalization of
// active-ingredient strings beyond this is out of scope.
func normalizeCategory(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// parseQuantity accepts both dot and comma decimal separators, as the
// regulator's exports mix them.
func parseQuantity(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
}

func parseFlag(v string) bool {
	switch strings.ToUpper(v) {
	case "SI", "S", "1", "TRUE":
		return true
	}
	return false
}
