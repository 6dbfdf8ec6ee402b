package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type MySQL struct {
	Host   string
	Port   string
	User   string
	Pass   string
	DBName string
	conn   *sql.DB
}

func (d *MySQL) Connect() error {
	port := d.Port
	if port == "" {
		port = "3306"
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Pass
	cfg.Net = "tcp"
	cfg.Addr = d.Host + ":" + port
	cfg.DBName = d.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("error connectant a MySQL: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("error connectant a MySQL: %w", err)
	}
	d.conn = conn
	logInfof("Connectat a MySQL %s/%s", cfg.Addr, d.DBName)
	return nil
}

func (d *MySQL) Close() {
	if d.conn != nil {
		d.conn.Close()
	}
}

func (d *MySQL) Conn() *sql.DB { return d.conn }

func (d *MySQL) Style() string { return "mysql" }
