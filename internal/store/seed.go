package store

import (
	"context"
	"fmt"
)

// Stat is one row of the statistics view.
type Stat struct {
	Region    string `json:"region"`
	Diagnosis string `json:"enfermedad"`
	Cases     int64  `json:"num_casos"`
}

// SampleStats is the demo distribution loaded by Seed. Each stat yields
// Cases/SeedScale patient records.
var SampleStats = []Stat{
	{Region: "Madrid", Diagnosis: "Depresión", Cases: 1500},
	{Region: "Cataluña", Diagnosis: "Ansiedad", Cases: 1200},
	{Region: "Andalucía", Diagnosis: "Trastorno bipolar", Cases: 800},
	{Region: "Valencia", Diagnosis: "Esquizofrenia", Cases: 600},
	{Region: "Galicia", Diagnosis: "Trastorno obsesivo-compulsivo", Cases: 400},
	{Region: "Madrid", Diagnosis: "Ansiedad", Cases: 1100},
	{Region: "Cataluña", Diagnosis: "Depresión", Cases: 900},
	{Region: "País Vasco", Diagnosis: "Trastorno alimentario", Cases: 300},
	{Region: "Navarra", Diagnosis: "Estrés postraumático", Cases: 200},
}

const SeedScale = 10

const insertPatient = `
INSERT INTO datos_originales (
	nombre, comunidad_autonoma, fecha_de_nacimiento, sexo, categoria,
	centro_recodificado, fecha_de_ingreso, fecha_de_fin_contacto, estancia_dias
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Patient is a raw record of datos_originales.
type Patient struct {
	Name        string
	Region      string
	BirthDate   string // MM/DD/YY
	Sex         string // 1 hombre, 2 mujer, 3 otros
	Diagnosis   string
	Center      string
	AdmittedAt  string
	DischargeAt string
	StayDays    int
}

// SamplePatients expands SampleStats into deterministic patient records.
func SamplePatients() []Patient {
	var out []Patient
	n := 0
	for _, st := range SampleStats {
		for j := int64(0); j < st.Cases/SeedScale; j++ {
			n++
			year := 1926 + (n*7)%80
			sex := "1"
			switch {
			case n%15 == 0:
				sex = "3"
			case n%2 == 0:
				sex = "2"
			}
			out = append(out, Patient{
				Name:        fmt.Sprintf("PACIENTE %05d", n),
				Region:      st.Region,
				BirthDate:   fmt.Sprintf("%02d/%02d/%02d", 1+n%12, 1+n%28, year%100),
				Sex:         sex,
				Diagnosis:   st.Diagnosis,
				Center:      fmt.Sprintf("Centro %s %d", st.Region, 1+n%3),
				AdmittedAt:  fmt.Sprintf("%02d/%02d/23", 1+n%12, 1+n%28),
				DischargeAt: fmt.Sprintf("%02d/%02d/24", 1+n%12, 1+n%28),
				StayDays:    5 + n%40,
			})
		}
	}
	return out
}

// Seed loads the sample patients when the table is empty.
func (s *Store) Seed(ctx context.Context) error {
	var existing int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+PatientsTable).Scan(&existing); err != nil {
		return fmt.Errorf("failed to count patients: %w", err)
	}
	if existing > 0 {
		s.log.Debug("store: seed skipped, table not empty", "rows", existing)
		return nil
	}
	return s.InsertPatients(ctx, SamplePatients())
}

// InsertPatients writes records in a single transaction.
func (s *Store) InsertPatients(ctx context.Context, patients []Patient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertPatient)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range patients {
		if _, err := stmt.ExecContext(ctx, p.Name, p.Region, p.BirthDate, p.Sex, p.Diagnosis,
			p.Center, p.AdmittedAt, p.DischargeAt, p.StayDays); err != nil {
			return fmt.Errorf("failed to insert patient %s: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit patients: %w", err)
	}
	s.log.Info("store: patients inserted", "rows", len(patients))
	return nil
}
