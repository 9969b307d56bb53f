// Package patients filters and pages the raw patient records behind the
// statistics view.
package patients

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultRowsPerPage = 20
	MaxRowsPerPage     = 100

	defaultOptionsCacheTTL = 5 * time.Minute
)

// Querier is satisfied by *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Config struct {
	Logger          *slog.Logger
	DB              Querier
	OptionsCacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.DB == nil {
		return errors.New("db is required")
	}
	if c.OptionsCacheTTL == 0 {
		c.OptionsCacheTTL = defaultOptionsCacheTTL
	}
	return nil
}

// Filters narrows the patient list. Empty fields do not filter.
type Filters struct {
	Comunidades  []string `json:"comunidades,omitempty"`
	BirthYearMin *int     `json:"año_nacimiento_min,omitempty"`
	BirthYearMax *int     `json:"año_nacimiento_max,omitempty"`
	Sexo         []string `json:"sexo,omitempty"`
	Diagnosticos []string `json:"diagnosticos,omitempty"`
	Centros      []string `json:"centros,omitempty"`
}

type Patient struct {
	ID               int64  `json:"id"`
	Nombre           string `json:"nombre"`
	Comunidad        string `json:"comunidad"`
	BirthYear        int64  `json:"año_nacimiento"`
	Sexo             string `json:"sexo"`
	Diagnostico      string `json:"diagnostico"`
	Centro           string `json:"centro"`
	FechaIngreso     string `json:"fecha_ingreso"`
	FechaFinContacto string `json:"fecha_fin_contacto"`
	EstanciaDias     int64  `json:"estancia_dias"`
}

type Page struct {
	Data         []Patient `json:"data"`
	TotalRecords int64     `json:"total_records"`
	CurrentPage  int       `json:"current_page"`
	TotalPages   int64     `json:"total_pages"`
	RowsPerPage  int       `json:"rows_per_page"`
}

type YearRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type Options struct {
	Comunidades    []string  `json:"comunidades"`
	Sexos          []string  `json:"sexos"`
	Diagnosticos   []string  `json:"diagnosticos"`
	Centros        []string  `json:"centros"`
	BirthYearRange YearRange `json:"año_nacimiento_range"`
}

type Service struct {
	log *slog.Logger
	cfg *Config

	cache   *ttlcache.Cache[string, any]
	cacheMu sync.RWMutex
}

func NewService(cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, any](cfg.OptionsCacheTTL),
	)

	return &Service{
		log:   cfg.Logger,
		cfg:   cfg,
		cache: cache,
	}, nil
}
