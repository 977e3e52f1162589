package dialect

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

// Unquoted identifiers fold to lower case in Postgres.
func (d *PostgresDialect) NormalizeIdentifier(name string) string {
	return strings.ToLower(name)
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	if isSimpleIdentifier(name) && name == strings.ToLower(name) {
		return name
	}
	return pq.QuoteIdentifier(name)
}

// QuoteString switches to the E'' form when backslashes are present.
func (d *PostgresDialect) QuoteString(s string) string {
	return strings.TrimSpace(pq.QuoteLiteral(s))
}

func (d *PostgresDialect) Boolean(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d *PostgresDialect) DateLiteral(text string, withTime bool) string {
	if withTime {
		return "TIMESTAMP " + d.QuoteString(timestampText(text))
	}
	return "DATE " + d.QuoteString(datePart(text))
}

func (d *PostgresDialect) NativeBoolean() bool    { return true }
func (d *PostgresDialect) BackslashEscapes() bool { return false }

var postgresTypes = map[string]TypeClass{
	"smallint": ClassSmallInt, "int2": ClassSmallInt, "smallserial": ClassSmallInt,
	"integer": ClassInteger, "int": ClassInteger, "int4": ClassInteger, "serial": ClassInteger,
	"bigint": ClassBigInt, "int8": ClassBigInt, "bigserial": ClassBigInt,
	"numeric": ClassDecimal, "decimal": ClassDecimal, "money": ClassDecimal,
	"real": ClassFloat, "float4": ClassFloat,
	"double precision": ClassDouble, "float8": ClassDouble, "float": ClassDouble,
	"char": ClassChar, "character": ClassChar, "bpchar": ClassChar,
	"varchar": ClassVarchar, "character varying": ClassVarchar,
	"text": ClassText, "citext": ClassText,
	"bytea": ClassBlob,
	"boolean": ClassBoolean, "bool": ClassBoolean,
	"date": ClassDate,
	"time": ClassTime, "time without time zone": ClassTime,
	"timestamp": ClassTimestamp, "timestamp without time zone": ClassTimestamp,
	"timestamptz": ClassTimestampTZ, "timestamp with time zone": ClassTimestampTZ,
	"interval": ClassInterval,
	"uuid": ClassUUID,
	"json": ClassJSON, "jsonb": ClassJSON,
	"xml": ClassXML,
}

func (d *PostgresDialect) ParseType(sqlType string) (TypeSpec, bool) {
	return lookupType(sqlType, postgresTypes)
}

func (d *PostgresDialect) RenderType(spec TypeSpec) string {
	switch spec.Class {
	case ClassSmallInt:
		return "smallint"
	case ClassInteger:
		return "integer"
	case ClassBigInt:
		return "bigint"
	case ClassDecimal:
		return withPrecision("numeric", spec)
	case ClassFloat:
		return "real"
	case ClassDouble:
		return "double precision"
	case ClassChar:
		return withLength("char", spec.Length, 1)
	case ClassVarchar:
		if spec.Length <= 0 {
			return "varchar"
		}
		return withLength("varchar", spec.Length, 0)
	case ClassText:
		return "text"
	case ClassBinary, ClassBlob:
		return "bytea"
	case ClassBoolean:
		return "boolean"
	case ClassDate:
		return "date"
	case ClassTime:
		return "time"
	case ClassTimestamp:
		return "timestamp"
	case ClassTimestampTZ:
		return "timestamptz"
	case ClassInterval:
		return "interval"
	case ClassUUID:
		return "uuid"
	case ClassJSON:
		return "jsonb"
	case ClassXML:
		return "xml"
	}
	return string(spec.Class)
}

func (d *PostgresDialect) Function(fn Function) string {
	switch fn {
	case FuncCurrentTimestamp:
		return "CURRENT_TIMESTAMP"
	case FuncCurrentDate:
		return "CURRENT_DATE"
	case FuncCurrentTime:
		return "CURRENT_TIME"
	case FuncUUID:
		return "gen_random_uuid()"
	}
	return ""
}

// SequenceName follows the serial naming convention: <table>_<column>_seq.
func (d *PostgresDialect) SequenceName(table, column string) string {
	return strings.ToLower(table + "_" + column + "_seq")
}

func (d *PostgresDialect) SequenceDDL(table, column string, start int64) string {
	return fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s START WITH %d;", d.QuoteIdentifier(d.SequenceName(table, column)), max(start, 1))
}

func (d *PostgresDialect) NextValue(sequence string) string {
	return "nextval(" + d.QuoteString(d.NormalizeIdentifier(sequence)) + ")"
}

func (d *PostgresDialect) InsertStatement(table string, cols []string, values []string) string {
	return DefaultInsertStatement(d, table, cols, values)
}
