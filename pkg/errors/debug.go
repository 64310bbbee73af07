package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Diagnostics flattens an error chain for logs. Nothing here is sent to
// clients.
type Diagnostics struct {
	Message string
	Code    Code
	Chain   []string

	Driver     string
	DBCode     string
	Constraint string
	Table      string
	Column     string
	Detail     string
	DBMessage  string
}

// Dump walks err and pulls driver details out of postgres (pgx or lib/pq)
// and sqlite errors.
func Dump(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}

	d := Diagnostics{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pgxErr):
		d.Driver = "pgx"
		d.DBCode = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
		d.DBMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.Driver = "pq"
		d.DBCode = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
		d.DBMessage = pqErr.Message
	case errors.As(err, &liteErr):
		d.Driver = "sqlite3"
		d.DBCode = fmt.Sprintf("%d", int(liteErr.ExtendedCode))
		d.DBMessage = liteErr.Error()
	}
	return d
}

// Fields returns the populated diagnostics as log fields.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.Driver == "" {
		return fields
	}
	fields["db_driver"] = d.Driver
	for key, value := range map[string]string{
		"db_code":       d.DBCode,
		"db_constraint": d.Constraint,
		"db_table":      d.Table,
		"db_column":     d.Column,
		"db_detail":     d.Detail,
		"db_message":    d.DBMessage,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
