package patients

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
)

var birthYear = store.BirthYearSQL("fecha_de_nacimiento")

const baseConditions = `fecha_de_nacimiento IS NOT NULL
	AND comunidad_autonoma IS NOT NULL
	AND categoria IS NOT NULL
	AND centro_recodificado IS NOT NULL`

// where accumulates conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) in(expr string, values []string, wrap string) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = w.arg(v)
		if wrap != "" {
			placeholders[i] = wrap + "(" + placeholders[i] + ")"
		}
	}
	w.conds = append(w.conds, fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return baseConditions
	}
	return baseConditions + "\n\tAND " + strings.Join(w.conds, "\n\tAND ")
}

// SexCode maps a filter label onto the stored sexo code.
func SexCode(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "hombre":
		return "1"
	case "mujer":
		return "2"
	default:
		return "3"
	}
}

func buildWhere(f Filters) *where {
	w := &where{}
	w.in("UPPER(comunidad_autonoma)", f.Comunidades, "UPPER")
	if f.BirthYearMin != nil {
		w.conds = append(w.conds, birthYear+" >= "+w.arg(*f.BirthYearMin))
	}
	if f.BirthYearMax != nil {
		w.conds = append(w.conds, birthYear+" <= "+w.arg(*f.BirthYearMax))
	}
	if len(f.Sexo) > 0 {
		codes := make([]string, len(f.Sexo))
		for i, s := range f.Sexo {
			codes[i] = SexCode(s)
		}
		w.in("sexo", codes, "")
	}
	w.in("categoria", f.Diagnosticos, "")
	w.in("centro_recodificado", f.Centros, "")
	return w
}

// Filter returns one page of patients matching f, ordered by name.
func (s *Service) Filter(ctx context.Context, f Filters, page, rowsPerPage int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if rowsPerPage < 1 {
		rowsPerPage = DefaultRowsPerPage
	}
	if rowsPerPage > MaxRowsPerPage {
		rowsPerPage = MaxRowsPerPage
	}

	w := buildWhere(f)

	var total int64
	countQuery := "SELECT COUNT(*) FROM datos_originales WHERE " + w.String()
	if err := s.cfg.DB.QueryRowContext(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("failed to count patients: %w", err)
	}

	offset := (page - 1) * rowsPerPage
	query := fmt.Sprintf(`
SELECT nombre,
	comunidad_autonoma,
	%s AS anio_nacimiento,
	CASE WHEN sexo = '1' THEN 'Hombre' WHEN sexo = '2' THEN 'Mujer' ELSE 'Otros' END AS sexo,
	categoria,
	centro_recodificado,
	fecha_de_ingreso,
	fecha_de_fin_contacto,
	estancia_dias
FROM datos_originales
WHERE %s
ORDER BY nombre, centro_recodificado
LIMIT %d OFFSET %d`, birthYear, w.String(), rowsPerPage, offset)

	rows, err := s.cfg.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	data := []Patient{}
	for rows.Next() {
		var (
			p            Patient
			ingreso, fin sql.NullString
			estancia     sql.NullInt64
		)
		if err := rows.Scan(&p.Nombre, &p.Comunidad, &p.BirthYear, &p.Sexo, &p.Diagnostico,
			&p.Centro, &ingreso, &fin, &estancia); err != nil {
			return Page{}, fmt.Errorf("failed to scan patient: %w", err)
		}
		p.ID = int64(offset + len(data) + 1)
		p.FechaIngreso = ingreso.String
		p.FechaFinContacto = fin.String
		p.EstanciaDias = estancia.Int64
		data = append(data, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("failed to iterate patients: %w", err)
	}

	s.log.Debug("patients: filtered", "total", total, "page", page, "rows", len(data))

	return Page{
		Data:         data,
		TotalRecords: total,
		CurrentPage:  page,
		TotalPages:   (total + int64(rowsPerPage) - 1) / int64(rowsPerPage),
		RowsPerPage:  rowsPerPage,
	}, nil
}
