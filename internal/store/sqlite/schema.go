package sqlite

import (
	"bytes"
	"database/sql"
	"embed"
	"text/template"

	"github.com/ppiankov/wikiner/internal/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var schemaTemplates = template.Must(template.ParseFS(schemaFS, "schema/*.sql"))

type tableNames struct {
	Items   string
	Records string
}

func applySchema(db *sql.DB, name string, tables tableNames) error {
	var buf bytes.Buffer
	if err := schemaTemplates.ExecuteTemplate(&buf, name, tables); err != nil {
		return errors.Wrapf(err, "render %s", name)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", name)
	}
	if _, err := tx.Exec(buf.String()); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "execute %s", name)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", name)
}
