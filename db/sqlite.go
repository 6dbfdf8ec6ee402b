package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite implementa Engine sobre un fitxer local.
type SQLite struct {
	Path string
	conn *sql.DB
}

// Connect obre el fitxer amb claus foranes actives. SQLite només admet un escriptor,
// així que el pool queda limitat a una connexió.
func (s *SQLite) Connect() error {
	dsn := s.Path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("error obrint SQLite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("error connectant a SQLite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)
	s.conn = conn
	logInfof("Connectat a SQLite: %s", s.Path)
	return nil
}

func (s *SQLite) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *SQLite) Conn() *sql.DB { return s.conn }

func (s *SQLite) Style() string { return "sqlite" }
