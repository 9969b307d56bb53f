// Package visualization aggregates patient records for the dashboard charts.
package visualization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
)

// ReferenceYear is the year ages are computed against.
const ReferenceYear = 2024

const defaultPoolSize = 4

var ErrDiagnosisRequired = errors.New("diagnosis is required")

// Querier is satisfied by *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Config struct {
	Logger   *slog.Logger
	DB       Querier
	PoolSize int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.DB == nil {
		return errors.New("db is required")
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaultPoolSize
	}
	return nil
}

type PyramidBucket struct {
	Intervalo string `json:"intervalo"`
	Hombres   int64  `json:"hombres"`
	Mujeres   int64  `json:"mujeres"`
}

type Histogram struct {
	AgeGroups []string `json:"age_groups"`
	Counts    []int64  `json:"counts"`
	Diagnosis string   `json:"diagnosis"`
}

type GenderDistribution struct {
	MaleCount   int64  `json:"male_count"`
	FemaleCount int64  `json:"female_count"`
	Total       int64  `json:"total"`
	Diagnosis   string `json:"diagnosis"`
}

type Overview struct {
	Diagnosis string             `json:"diagnosis"`
	Pyramid   []PyramidBucket    `json:"pyramid"`
	Histogram Histogram          `json:"histogram"`
	Gender    GenderDistribution `json:"gender"`
}

type Service struct {
	log  *slog.Logger
	cfg  *Config
	pool pond.Pool
}

func NewService(cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewPool(cfg.PoolSize),
	}, nil
}

// Close waits for running aggregations and stops the worker pool.
func (s *Service) Close() {
	s.pool.StopAndWait()
}

var birthYear = store.BirthYearSQL("fecha_de_nacimiento")

const patientKey = "COUNT(DISTINCT nombre || '_' || centro_recodificado)"

// AgePyramid counts distinct male and female patients per birth-year group.
func (s *Service) AgePyramid(ctx context.Context, diagnosis string) ([]PyramidBucket, error) {
	if diagnosis == "" {
		return nil, ErrDiagnosisRequired
	}

	query := fmt.Sprintf(`
SELECT grupo, sexo, %s AS n
FROM (
	SELECT %s AS grupo, sexo, nombre, centro_recodificado
	FROM datos_originales
	WHERE categoria = $1
		AND fecha_de_nacimiento IS NOT NULL
		AND sexo IN ('1', '2')
		AND nombre IS NOT NULL
		AND centro_recodificado IS NOT NULL
) t
GROUP BY grupo, sexo`, patientKey, caseSQL(birthYear, birthYearGroups))

	buckets := make([]PyramidBucket, len(birthYearGroups))
	index := make(map[string]int, len(birthYearGroups))
	for i, g := range birthYearGroups {
		buckets[i] = PyramidBucket{Intervalo: g.label}
		index[g.label] = i
	}

	err := s.scanGroups(ctx, query, diagnosis, func(group, sex string, n int64) {
		i, ok := index[group]
		if !ok {
			return
		}
		switch sex {
		case "1":
			buckets[i].Hombres = n
		case "2":
			buckets[i].Mujeres = n
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query age pyramid: %w", err)
	}
	return buckets, nil
}

// AgeHistogram counts distinct patients per age group at ReferenceYear.
func (s *Service) AgeHistogram(ctx context.Context, diagnosis string) (Histogram, error) {
	if diagnosis == "" {
		return Histogram{}, ErrDiagnosisRequired
	}

	age := fmt.Sprintf("(%d - %s)", ReferenceYear, birthYear)
	query := fmt.Sprintf(`
SELECT grupo, '' AS sexo, %s AS n
FROM (
	SELECT %s AS grupo, nombre, centro_recodificado
	FROM datos_originales
	WHERE categoria = $1
		AND fecha_de_nacimiento IS NOT NULL
) t
GROUP BY grupo`, patientKey, caseSQL(age, ageGroups))

	h := Histogram{
		AgeGroups: make([]string, len(ageGroups)),
		Counts:    make([]int64, len(ageGroups)),
		Diagnosis: diagnosis,
	}
	index := make(map[string]int, len(ageGroups))
	for i, g := range ageGroups {
		h.AgeGroups[i] = g.label
		index[g.label] = i
	}

	err := s.scanGroups(ctx, query, diagnosis, func(group, _ string, n int64) {
		if i, ok := index[group]; ok {
			h.Counts[i] = n
		}
	})
	if err != nil {
		return Histogram{}, fmt.Errorf("failed to query age histogram: %w", err)
	}
	return h, nil
}

// GenderDistribution counts distinct male and female patients.
func (s *Service) GenderDistribution(ctx context.Context, diagnosis string) (GenderDistribution, error) {
	if diagnosis == "" {
		return GenderDistribution{}, ErrDiagnosisRequired
	}

	query := fmt.Sprintf(`
SELECT '' AS grupo, sexo, %s AS n
FROM datos_originales
WHERE categoria = $1
	AND fecha_de_nacimiento IS NOT NULL
	AND sexo IN ('1', '2')
GROUP BY sexo`, patientKey)

	g := GenderDistribution{Diagnosis: diagnosis}
	err := s.scanGroups(ctx, query, diagnosis, func(_, sex string, n int64) {
		switch sex {
		case "1":
			g.MaleCount = n
		case "2":
			g.FemaleCount = n
		}
	})
	if err != nil {
		return GenderDistribution{}, fmt.Errorf("failed to query gender distribution: %w", err)
	}
	g.Total = g.MaleCount + g.FemaleCount
	return g, nil
}

// Overview computes all charts for a diagnosis concurrently.
func (s *Service) Overview(ctx context.Context, diagnosis string) (Overview, error) {
	if diagnosis == "" {
		return Overview{}, ErrDiagnosisRequired
	}

	out := Overview{Diagnosis: diagnosis}
	group := s.pool.NewGroupContext(ctx)
	group.SubmitErr(func() error {
		var err error
		out.Pyramid, err = s.AgePyramid(ctx, diagnosis)
		return err
	})
	group.SubmitErr(func() error {
		var err error
		out.Histogram, err = s.AgeHistogram(ctx, diagnosis)
		return err
	})
	group.SubmitErr(func() error {
		var err error
		out.Gender, err = s.GenderDistribution(ctx, diagnosis)
		return err
	})

	if err := group.Wait(); err != nil {
		return Overview{}, fmt.Errorf("failed to build overview: %w", err)
	}
	s.log.Debug("visualization: overview built", "diagnosis", diagnosis)
	return out, nil
}

func (s *Service) scanGroups(ctx context.Context, query, diagnosis string, fn func(group, sex string, n int64)) error {
	rows, err := s.cfg.DB.QueryContext(ctx, query, diagnosis)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			group, sex sql.NullString
			n          int64
		)
		if err := rows.Scan(&group, &sex, &n); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		fn(group.String, sex.String, n)
	}
	return rows.Err()
}
