package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// buildMySQLDSN assembles a go-sql-driver DSN. parseTime stays on so gorm
// scans DATETIME columns into time.Time.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql requires a user and a database name")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	var b strings.Builder
	b.WriteString(cfg.User)
	if cfg.Password != "" {
		b.WriteByte(':')
		b.WriteString(cfg.Password)
	}
	fmt.Fprintf(&b, "@tcp(%s:%d)/%s?", host, port, cfg.Name)
	b.WriteString(strings.Join(mysqlDSNOptions(cfg.Options), "&"))

	return b.String(), nil
}

func mysqlDSNOptions(overrides map[string]string) []string {
	merged := map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "Local",
	}
	for key, value := range overrides {
		merged[key] = value
	}

	opts := make([]string, 0, len(merged))
	for key, value := range merged {
		opts = append(opts, key+"="+value)
	}
	sort.Strings(opts)
	return opts
}
