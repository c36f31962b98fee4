package registryparser

import (
	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/registryparser/entities"
)

// Compile-time check to ensure RegistryParser implements Parser interface
var _ interfaces.Parser = (*RegistryParser)(nil)

// RegistryParser implements the Parser interface
type RegistryParser struct{}

// NewRegistryParser creates a new RegistryParser instance
func NewRegistryParser() *RegistryParser {
	return &RegistryParser{}
}

// ParseRegistryFile implements the Parser interface
func (p *RegistryParser) ParseRegistryFile(filePath string) ([]entities.MedicationRecord, error) {
	return ParseRegistryFile(filePath)
}
