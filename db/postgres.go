package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type PostgreSQL struct {
	Host   string
	Port   string
	User   string
	Pass   string
	DBName string
	conn   *sql.DB
}

func (p *PostgreSQL) Connect() error {
	port := p.Port
	if port == "" {
		port = "5432"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, port, p.User, p.Pass, p.DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error connectant a PostgreSQL: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("error connectant a PostgreSQL: %w", err)
	}
	p.conn = conn
	logInfof("Connectat a PostgreSQL %s:%s/%s", p.Host, port, p.DBName)
	return nil
}

func (p *PostgreSQL) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *PostgreSQL) Conn() *sql.DB { return p.conn }

func (p *PostgreSQL) Style() string { return "postgres" }
