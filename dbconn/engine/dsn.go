package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jakobkrein-pag/n8n/dbconn/options"
)

// sqliteDSN builds the mattn/go-sqlite3 connection string. WAL is requested
// through the driver's journal-mode pragma parameter.
func sqliteDSN(opts *options.SQLiteOptions) string {
	if opts.EnableWAL {
		return fmt.Sprintf("file:%s?_journal_mode=WAL", opts.Path)
	}

	return opts.Path
}

// postgresDSN builds a libpq-style keyword/value DSN for the pgx stdlib
// driver. The options' CA, cert and key strings are PEM file paths.
func postgresDSN(opts *options.PostgresOptions) string {
	parts := []string{
		"host=" + quoteDSNValue(opts.Host),
		fmt.Sprintf("port=%d", opts.Port),
		"user=" + quoteDSNValue(opts.User),
		"dbname=" + quoteDSNValue(opts.Database),
	}

	if opts.Password != "" {
		parts = append(parts, "password="+quoteDSNValue(opts.Password))
	}

	if opts.Schema != "" {
		parts = append(parts, "search_path="+quoteDSNValue(opts.Schema))
	}

	if opts.ConnectTimeout > 0 {
		seconds := int(opts.ConnectTimeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}

		parts = append(parts, fmt.Sprintf("connect_timeout=%d", seconds))
	}

	parts = append(parts, postgresSSLParams(opts)...)

	return strings.Join(parts, " ")
}

func postgresSSLParams(opts *options.PostgresOptions) []string {
	if opts.TLS == nil {
		if opts.SSLEnabled {
			return []string{"sslmode=require"}
		}

		return []string{"sslmode=disable"}
	}

	mode := "require"
	if opts.TLS.RejectUnauthorized {
		mode = "verify-full"
	}

	parts := []string{"sslmode=" + mode}

	if opts.TLS.CA != "" {
		parts = append(parts, "sslrootcert="+quoteDSNValue(opts.TLS.CA))
	}

	if opts.TLS.Cert != "" {
		parts = append(parts, "sslcert="+quoteDSNValue(opts.TLS.Cert))
	}

	if opts.TLS.Key != "" {
		parts = append(parts, "sslkey="+quoteDSNValue(opts.TLS.Key))
	}

	return parts
}

// quoteDSNValue wraps a keyword/value DSN value in single quotes when it
// contains characters libpq would misparse.
func quoteDSNValue(value string) string {
	if value == "" || !strings.ContainsAny(value, " '\\") {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)

	return "'" + escaped + "'"
}

// mysqlDSN builds the go-sql-driver DSN for the mysql and mariadb backends.
// The session runs in UTC regardless of operator locale.
func mysqlDSN(opts *options.MySQLOptions) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	cfg.DBName = opts.Database
	cfg.ParseTime = true

	if opts.Timezone == "UTC" {
		cfg.Loc = time.UTC
		cfg.Params = map[string]string{"time_zone": "'+00:00'"}
	}

	return cfg.FormatDSN()
}
