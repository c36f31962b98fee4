package entities

import "time"

// MedicationRecord is one entry of the national drug registry after the
// external cleaning stage (16 raw columns standardized to 15 typed fields
// plus the CUM identity). Records are read-only once loaded; identity is
// the CUM code.
type MedicationRecord struct {
	CUM                string    `json:"cum"`
	Expediente         string    `json:"expediente"`
	Product            string    `json:"producto"`
	ActiveIngredient   string    `json:"principioActivo"`
	ATC                string    `json:"atc"`
	ATCDescription     string    `json:"descripcionAtc"`
	PharmaceuticalForm string    `json:"formaFarmaceutica"`
	Route              string    `json:"viaAdministracion"`
	Unit               string    `json:"unidadMedida"`
	Quantity           float64   `json:"cantidad"`
	ReferenceQuantity  float64   `json:"cantidadCum"`
	RegistrationStatus string    `json:"estadoRegistro"`
	CUMStatus          string    `json:"estadoCum"`
	MedicalSample      bool      `json:"muestraMedica"`
	CoveredPBS         bool      `json:"coberturaPbs"`
	ExpirationDate     time.Time `json:"fechaExpiracion"`
}

// Registration status values as exported by the regulator.
const (
	StatusVigente    = "VIGENTE"
	StatusRenovacion = "EN TRAMITE RENOVACION"
	StatusVencido    = "VENCIDO"

	CUMStatusActivo   = "ACTIVO"
	CUMStatusInactivo = "INACTIVO"
)
