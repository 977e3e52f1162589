package dialect

import (
	"fmt"
	"strings"
)

// Names lists the supported dialects.
var Names = []string{"postgres", "oracle", "mysql", "mssql"}

// GetDialect returns the appropriate Dialect implementation based on name.
func GetDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return &PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	case "oracle":
		return &OracleDialect{}, nil
	case "mysql", "mariadb":
		return &MysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)
