package patients

import (
	"context"
	"database/sql"
	"fmt"
)

const optionsCacheKey = "filter_options"

// Default birth-year range reported when there are no records.
const (
	DefaultBirthYearMin = 1950
	DefaultBirthYearMax = 2005
)

var sexLabels = []string{"Hombre", "Mujer", "Otros"}

// Options returns the distinct values available for each filter.
func (s *Service) Options(ctx context.Context) (Options, error) {
	if cached, ok := s.getCachedOptions(); ok {
		return cached, nil
	}

	opts := Options{Sexos: sexLabels}
	var err error
	if opts.Comunidades, err = s.distinct(ctx, "comunidad_autonoma"); err != nil {
		return Options{}, err
	}
	if opts.Diagnosticos, err = s.distinct(ctx, "categoria"); err != nil {
		return Options{}, err
	}
	if opts.Centros, err = s.distinct(ctx, "centro_recodificado"); err != nil {
		return Options{}, err
	}

	var minYear, maxYear sql.NullInt64
	query := fmt.Sprintf("SELECT MIN(%[1]s), MAX(%[1]s) FROM datos_originales WHERE fecha_de_nacimiento IS NOT NULL", birthYear)
	if err := s.cfg.DB.QueryRowContext(ctx, query).Scan(&minYear, &maxYear); err != nil {
		return Options{}, fmt.Errorf("failed to query birth year range: %w", err)
	}
	opts.BirthYearRange = YearRange{Min: DefaultBirthYearMin, Max: DefaultBirthYearMax}
	if minYear.Valid {
		opts.BirthYearRange.Min = minYear.Int64
	}
	if maxYear.Valid {
		opts.BirthYearRange.Max = maxYear.Int64
	}

	s.setCachedOptions(opts)
	return opts, nil
}

func (s *Service) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.cfg.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM datos_originales WHERE %[1]s IS NOT NULL ORDER BY %[1]s", column))
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", column, err)
	}
	return values, nil
}

func (s *Service) getCachedOptions() (Options, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	cached := s.cache.Get(optionsCacheKey)
	if cached == nil {
		return Options{}, false
	}
	return cached.Value().(Options), true
}

func (s *Service) setCachedOptions(opts Options) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache.Set(optionsCacheKey, opts, s.cfg.OptionsCacheTTL)
}
