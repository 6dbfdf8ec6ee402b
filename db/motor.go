package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// Engine és un motor SQL concret (SQLite, PostgreSQL o MySQL).
type Engine interface {
	Connect() error
	Close()
	Conn() *sql.DB
	Style() string
}

// Store agrupa la connexió activa i les consultes del domini.
type Store struct {
	engine Engine
	db     *sql.DB
	style  string
}

// NewStore embolcalla un motor ja connectat.
func NewStore(e Engine) *Store {
	return &Store{engine: e, db: e.Conn(), style: e.Style()}
}

// Open obté una connexió segons DB_ENGINE i, si cal, aplica l'esquema.
func Open(config map[string]string) (*Store, error) {
	var engine Engine
	name := strings.ToLower(strings.TrimSpace(config["DB_ENGINE"]))

	switch name {
	case "", "sqlite":
		path := config["DB_PATH"]
		if path == "" {
			path = "./sparta.db"
		}
		engine = &SQLite{Path: path}
	case "postgres":
		engine = &PostgreSQL{
			Host:   config["DB_HOST"],
			Port:   config["DB_PORT"],
			User:   config["DB_USR"],
			Pass:   config["DB_PASS"],
			DBName: config["DB_NAME"],
		}
	case "mysql":
		engine = &MySQL{
			Host:   config["DB_HOST"],
			Port:   config["DB_PORT"],
			User:   config["DB_USR"],
			Pass:   config["DB_PASS"],
			DBName: config["DB_NAME"],
		}
	default:
		return nil, fmt.Errorf("motor de BD desconegut: %s", name)
	}

	if err := engine.Connect(); err != nil {
		return nil, err
	}
	return NewStore(engine), nil
}

func (s *Store) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
}

func (s *Store) Style() string { return s.style }

// Handle retorna un executor fora de transacció.
func (s *Store) Handle() Handle {
	return Handle{q: s.db, style: s.style}
}

// InTx executa fn dins d'una única transacció. Si fn falla es fa ROLLBACK.
func (s *Store) InTx(ctx context.Context, fn func(Handle) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("no s'ha pogut començar transacció: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(Handle{q: tx, style: s.style}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error fent COMMIT: %w", err)
	}
	return nil
}

// Migrate aplica l'esquema embegut. Les sentències són idempotents.
func (s *Store) Migrate(ctx context.Context) error {
	return CreateDatabaseFromSQL(ctx, s, schemaSQL)
}

// CreateDatabaseFromSQL executa totes les sentències d'un script SQL dins d'una transacció.
func CreateDatabaseFromSQL(ctx context.Context, s *Store, raw string) error {
	logInfof("Aplicant esquema (%s)", s.style)

	// Elimina línies de comentari i línies buides
	var b strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") || trimmed == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	stmts := make([]string, 0, 64)
	for _, stmt := range strings.Split(b.String(), ";") {
		q := strings.TrimSpace(stmt)
		if q == "" {
			continue
		}
		stmts = append(stmts, adaptDDL(s.style, q))
	}

	// MySQL fa commit implícit amb cada DDL; la transacció només té sentit per SQLite/PostgreSQL.
	if s.style == "mysql" {
		h := s.Handle()
		for _, q := range stmts {
			if _, err := h.Exec(ctx, q); err != nil {
				if isDuplicateIndex(err) {
					continue
				}
				return ddlError(q, err)
			}
		}
		logInfof("Esquema aplicat correctament")
		return nil
	}

	err := s.InTx(ctx, func(h Handle) error {
		for _, q := range stmts {
			if _, err := h.Exec(ctx, q); err != nil {
				return ddlError(q, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logInfof("Esquema aplicat correctament")
	return nil
}

// adaptDDL ajusta les petites diferències de sintaxi entre motors.
func adaptDDL(style, q string) string {
	switch style {
	case "mysql":
		if strings.HasPrefix(strings.ToUpper(q), "CREATE INDEX IF NOT EXISTS") {
			q = "CREATE INDEX" + q[len("CREATE INDEX IF NOT EXISTS"):]
		}
		if strings.HasPrefix(strings.ToUpper(q), "CREATE UNIQUE INDEX IF NOT EXISTS") {
			q = "CREATE UNIQUE INDEX" + q[len("CREATE UNIQUE INDEX IF NOT EXISTS"):]
		}
		q = strings.ReplaceAll(q, " TEXT NOT NULL DEFAULT ''", " TEXT NOT NULL")
	}
	return q
}

func isDuplicateIndex(err error) bool {
	return strings.Contains(err.Error(), "Duplicate key name")
}

func ddlError(q string, err error) error {
	snip := q
	if len(snip) > 120 {
		snip = snip[:120] + " ..."
	}
	return fmt.Errorf("error executant '%s': %w", snip, err)
}

// now retorna l'hora actual en UTC truncada a microsegons, comparable entre motors.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
