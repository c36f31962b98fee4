package registryparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iamed/homologos-api/registryparser/entities"
)

const testHeader = "CUM;EXPEDIENTE;PRODUCTO;PRINCIPIO ACTIVO;ATC;DESCRIPCION ATC;FORMA FARMACEUTICA;VIA ADMINISTRACION;UNIDAD MEDIDA;CANTIDAD;CANTIDAD CUM;ESTADO REGISTRO;ESTADO CUM;MUESTRA MEDICA;COBERTURA PBS;FECHA EXPIRACION"

func writeRegistry(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registro.csv")
	content := strings.Join(append([]string{testHeader}, rows...), "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test registry: %v", err)
	}
	return path
}

func TestParseRegistryFile(t *testing.T) {
	path := writeRegistry(t,
		"19900001-1;19900001;Acetaminofen 500mg Tableta;acetaminofen;n02be01;Analgesicos;tableta;oral;mg;500;500;vigente;activo;No;Si;2027-03-15",
		"19900002-1;19900002;Amoxicilina Suspension;amoxicilina;j01ca04;Penicilinas;suspension;oral;ml;5,5;100;Vencido;Inactivo;Si;No;",
	)

	records, err := ParseRegistryFile(path)
	if err != nil {
		t.Fatalf("ParseRegistryFile failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.CUM != "19900001-1" {
		t.Errorf("CUM = %s", first.CUM)
	}
	// Categorical fields are normalized to upper case
	if first.ActiveIngredient != "ACETAMINOFEN" {
		t.Errorf("ActiveIngredient = %s, want ACETAMINOFEN", first.ActiveIngredient)
	}
	if first.ATC != "N02BE01" {
		t.Errorf("ATC = %s, want N02BE01", first.ATC)
	}
	if first.RegistrationStatus != entities.StatusVigente {
		t.Errorf("RegistrationStatus = %s, want %s", first.RegistrationStatus, entities.StatusVigente)
	}
	if first.CUMStatus != entities.CUMStatusActivo {
		t.Errorf("CUMStatus = %s, want %s", first.CUMStatus, entities.CUMStatusActivo)
	}
	// Product names keep their original casing
	if first.Product != "Acetaminofen 500mg Tableta" {
		t.Errorf("Product = %s", first.Product)
	}
	if first.Quantity != 500 || first.ReferenceQuantity != 500 {
		t.Errorf("quantities = %v/%v, want 500/500", first.Quantity, first.ReferenceQuantity)
	}
	if first.MedicalSample {
		t.Error("MedicalSample = true, want false")
	}
	if !first.CoveredPBS {
		t.Error("CoveredPBS = false, want true")
	}
	if want := time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC); !first.ExpirationDate.Equal(want) {
		t.Errorf("ExpirationDate = %v, want %v", first.ExpirationDate, want)
	}

	second := records[1]
	// Comma decimal separators are accepted
	if second.Quantity != 5.5 {
		t.Errorf("Quantity = %v, want 5.5", second.Quantity)
	}
	if !second.MedicalSample {
		t.Error("MedicalSample = false, want true")
	}
	if !second.ExpirationDate.IsZero() {
		t.Errorf("empty expiration parsed to %v", second.ExpirationDate)
	}
}

func TestParseRegistryFileErrors(t *testing.T) {
	valid := "19900001-1;19900001;Producto;pa;atc;desc;forma;via;mg;10;10;vigente;activo;No;No;"

	tests := []struct {
		name string
		rows []string
	}{
		{"duplicate CUM", []string{valid, valid}},
		{"empty CUM", []string{";19900001;Producto;pa;atc;desc;forma;via;mg;10;10;vigente;activo;No;No;"}},
		{"bad quantity", []string{"19900001-1;19900001;Producto;pa;atc;desc;forma;via;mg;diez;10;vigente;activo;No;No;"}},
		{"bad date", []string{"19900001-1;19900001;Producto;pa;atc;desc;forma;via;mg;10;10;vigente;activo;No;No;15/03/2027"}},
		{"short row", []string{"19900001-1;19900001;Producto"}},
		{"extra trailing field", []string{valid + ";extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRegistry(t, tt.rows...)
			if _, err := ParseRegistryFile(path); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseRegistryFileMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registro.csv")
	content := "CUM;PRODUCTO\n19900001-1;Producto"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test registry: %v", err)
	}

	if _, err := ParseRegistryFile(path); err == nil {
		t.Error("expected missing column error")
	}
}

func TestParseRegistryFileMissingFile(t *testing.T) {
	if _, err := ParseRegistryFile(filepath.Join(t.TempDir(), "no-such-file.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"500", 500, false},
		{"5,5", 5.5, false},
		{"5.5", 5.5, false},
		{"", 0, false},
		{"diez", 0, true},
	}

	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQuantity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseQuantity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFlag(t *testing.T) {
	for _, v := range []string{"Si", "SI", "s", "1", "true"} {
		if !parseFlag(v) {
			t.Errorf("parseFlag(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"No", "", "0", "false"} {
		if parseFlag(v) {
			t.Errorf("parseFlag(%q) = true, want false", v)
		}
	}
}
