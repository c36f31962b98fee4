// Package validation provides data validation functionality for the homologos API.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/registryparser/entities"
)

// Pre-compiled regex patterns for performance optimization
// Compiled once at package initialization and reused for all validations
var (
	// CUM codes as exported by the regulator: expedient number, a dash,
	// and a consecutive product number, e.g. "19901234-1"
	cumRegex = regexp.MustCompile(`^[0-9]{1,10}-[0-9]{1,4}$`)

	// Input validation: alphanumeric + Spanish accents + safe punctuation
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'áéíóúüñÁÉÍÓÚÜÑ]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateRecord checks if a registry record is schema-conformant
func (v *DataValidatorImpl) ValidateRecord(rec *entities.MedicationRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	if strings.TrimSpace(rec.CUM) == "" {
		return fmt.Errorf("empty CUM")
	}
	if !cumRegex.MatchString(rec.CUM) {
		return fmt.Errorf("malformed CUM: %s", rec.CUM)
	}

	if strings.TrimSpace(rec.Product) == "" {
		return fmt.Errorf("empty product name for CUM %s", rec.CUM)
	}
	if len(rec.Product) > 200 {
		return fmt.Errorf("product name too long for CUM %s: %d characters", rec.CUM, len(rec.Product))
	}

	if len(rec.ATC) > 10 {
		return fmt.Errorf("ATC code too long for CUM %s: %d characters", rec.CUM, len(rec.ATC))
	}
	if len(rec.Route) > 80 {
		return fmt.Errorf("route too long for CUM %s: %d characters", rec.CUM, len(rec.Route))
	}
	if len(rec.PharmaceuticalForm) > 120 {
		return fmt.Errorf("pharmaceutical form too long for CUM %s: %d characters", rec.CUM, len(rec.PharmaceuticalForm))
	}
	if len(rec.RegistrationStatus) > 50 {
		return fmt.Errorf("registration status too long for CUM %s: %d characters", rec.CUM, len(rec.RegistrationStatus))
	}

	return nil
}

// ValidateDataIntegrity performs batch-level validation of a loaded registry
func (v *DataValidatorImpl) ValidateDataIntegrity(records []entities.MedicationRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no records found")
	}

	// Check for duplicate CUM codes
	cumMap := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]
		if cumMap[rec.CUM] {
			return fmt.Errorf("duplicate CUM code found: %s", rec.CUM)
		}
		cumMap[rec.CUM] = true

		if err := v.ValidateRecord(rec); err != nil {
			return fmt.Errorf("invalid record CUM %s: %w", rec.CUM, err)
		}
	}

	return nil
}

// ReportDataQuality generates a quality report for a loaded batch.
// Findings here are informational; the training pipeline applies its own
// exclusion rules.
func (v *DataValidatorImpl) ReportDataQuality(records []entities.MedicationRecord) *interfaces.RegistryQualityReport {
	report := &interfaces.RegistryQualityReport{
		DuplicateCUMs: []string{},
	}

	cumMap := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]

		if cumMap[rec.CUM] {
			report.DuplicateCUMs = append(report.DuplicateCUMs, rec.CUM)
		}
		cumMap[rec.CUM] = true

		if rec.ATC == "" {
			report.RecordsWithoutATC++
		}
		if rec.Route == "" {
			report.RecordsWithoutRoute++
		}
		if rec.PharmaceuticalForm == "" {
			report.RecordsWithoutForm++
		}
		if rec.Quantity <= 0 {
			report.NonPositiveQuantities++
		}
		if rec.ReferenceQuantity == 0 {
			report.ZeroReferenceQuantity++
		}
		if rec.MedicalSample {
			report.MedicalSamples++
		}
	}

	if len(report.DuplicateCUMs) > 0 {
		logging.Error("Duplicate CUM values detected",
			"count", len(report.DuplicateCUMs),
			"duplicates", report.DuplicateCUMs,
		)
	}

	return report
}

// ValidateInput validates user input strings
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > 100 {
		return fmt.Errorf("input too long: %d characters (max 100)", len(input))
	}

	lower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			logging.Warn("Dangerous pattern in user input", "pattern", pattern)
			return fmt.Errorf("input contains invalid characters")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters")
	}

	return nil
}

// ValidateCUM validates CUM codes supplied by callers and returns the
// normalized form.
func (v *DataValidatorImpl) ValidateCUM(input string) (string, error) {
	cum := strings.TrimSpace(input)
	if cum == "" {
		return "", fmt.Errorf("CUM cannot be empty")
	}
	if !cumRegex.MatchString(cum) {
		return "", fmt.Errorf("malformed CUM: %s", input)
	}
	return cum, nil
}
