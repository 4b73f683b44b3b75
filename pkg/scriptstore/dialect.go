package scriptstore

import (
	"fmt"
	"strings"
)

// Dialect covers the SQL differences between the supported drivers.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	Limit(limit, offset int) string
	TextType() string
	CreateTable(table, columns string) string
}

type MySQLDialect struct{}

func (d MySQLDialect) Name() string { return "mysql" }

func (d MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d MySQLDialect) Placeholder(n int) string { return "?" }

func (d MySQLDialect) Limit(limit, offset int) string {
	if limit > 0 {
		if offset > 0 {
			return fmt.Sprintf(" LIMIT %d, %d", offset, limit)
		}
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return ""
}

func (d MySQLDialect) TextType() string { return "LONGTEXT" }

func (d MySQLDialect) CreateTable(table, columns string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), columns)
}

type SQLiteDialect struct{}

func (d SQLiteDialect) Name() string { return "sqlite" }

func (d SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d SQLiteDialect) Placeholder(n int) string { return "?" }

func (d SQLiteDialect) Limit(limit, offset int) string {
	res := ""
	if limit > 0 {
		res += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		if limit <= 0 {
			res += " LIMIT -1" // OFFSET needs a LIMIT
		}
		res += fmt.Sprintf(" OFFSET %d", offset)
	}
	return res
}

func (d SQLiteDialect) TextType() string { return "TEXT" }

func (d SQLiteDialect) CreateTable(table, columns string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), columns)
}

type SQLServerDialect struct{}

func (d SQLServerDialect) Name() string { return "sqlserver" }

func (d SQLServerDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d SQLServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// Limit uses OFFSET-FETCH, which requires an ORDER BY in the query.
func (d SQLServerDialect) Limit(limit, offset int) string {
	res := ""
	if offset > 0 {
		res += fmt.Sprintf(" OFFSET %d ROWS", offset)
		if limit > 0 {
			res += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", limit)
		}
	} else if limit > 0 {
		res += fmt.Sprintf(" OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", limit)
	}
	return res
}

func (d SQLServerDialect) TextType() string { return "NVARCHAR(MAX)" }

func (d SQLServerDialect) CreateTable(table, columns string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(table, "'", "''"), d.QuoteIdentifier(table), columns)
}

type PostgreSQLDialect struct{}

func (d PostgreSQLDialect) Name() string { return "postgres" }

func (d PostgreSQLDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d PostgreSQLDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d PostgreSQLDialect) Limit(limit, offset int) string {
	res := ""
	if limit > 0 {
		res += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		res += fmt.Sprintf(" OFFSET %d", offset)
	}
	return res
}

func (d PostgreSQLDialect) TextType() string { return "TEXT" }

func (d PostgreSQLDialect) CreateTable(table, columns string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), columns)
}

// GetDialect returns the dialect for a database/sql driver name. Unknown
// drivers get MySQL behaviour.
func GetDialect(driverName string) Dialect {
	switch strings.ToLower(driverName) {
	case "mysql":
		return MySQLDialect{}
	case "sqlite", "sqlite3":
		return SQLiteDialect{}
	case "postgres", "postgresql", "pgx":
		return PostgreSQLDialect{}
	case "sqlserver", "mssql":
		return SQLServerDialect{}
	default:
		return MySQLDialect{}
	}
}
