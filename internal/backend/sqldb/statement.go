package sqldb

import (
	"strings"

	"github.com/iot2db/iot2db/internal/backend"
)

// buildInsert renders a single-row insert. Record values are already
// escaped literals and are inlined as-is. The timestamp column is only
// required when the persistence flag has to be computed.
func buildInsert(dialect Dialect, table string, directive backend.InsertDirective) (string, error) {
	rec := directive.Record
	persist := directive.PersistentEvery > 0 && !rec.Has(backend.PersistentColumn)

	ts, ok := rec.Get(backend.TimestampColumn)
	if persist && !ok {
		return "", backend.ErrMissingTimestamp
	}

	var columns, values []string
	for _, c := range rec.Columns() {
		name, err := QuoteIdentifier(c.Name)
		if err != nil {
			return "", err
		}
		columns = append(columns, name)
		values = append(values, c.Value)
	}

	if persist {
		columns = append(columns, persistentColumn)
		values = append(values, dialect.PersistentExpr(table, ts, directive.PersistentEvery))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(") ON CONFLICT DO NOTHING")
	return b.String(), nil
}
