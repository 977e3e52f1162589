package dialect

import (
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

// Table name case depends on lower_case_table_names; keep as written.
func (d *MysqlDialect) NormalizeIdentifier(name string) string {
	return name
}

func (d *MysqlDialect) QuoteIdentifier(name string) string {
	if isSimpleIdentifier(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString escapes backslashes too, since MySQL treats them as escapes.
func (d *MysqlDialect) QuoteString(s string) string {
	return DefaultQuoteString(strings.ReplaceAll(s, `\`, `\\`))
}

func (d *MysqlDialect) Boolean(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *MysqlDialect) DateLiteral(text string, withTime bool) string {
	if withTime {
		return d.QuoteString(timestampText(text))
	}
	return d.QuoteString(datePart(text))
}

func (d *MysqlDialect) NativeBoolean() bool    { return false }
func (d *MysqlDialect) BackslashEscapes() bool { return true }

var mysqlTypes = map[string]TypeClass{
	"tinyint": ClassSmallInt, "smallint": ClassSmallInt, "mediumint": ClassInteger,
	"int": ClassInteger, "integer": ClassInteger, "bigint": ClassBigInt,
	"decimal": ClassDecimal, "numeric": ClassDecimal,
	"float": ClassFloat, "double": ClassDouble, "double precision": ClassDouble, "real": ClassDouble,
	"char": ClassChar, "varchar": ClassVarchar,
	"tinytext": ClassText, "text": ClassText, "mediumtext": ClassText, "longtext": ClassText,
	"binary": ClassBinary, "varbinary": ClassBinary,
	"tinyblob": ClassBlob, "blob": ClassBlob, "mediumblob": ClassBlob, "longblob": ClassBlob,
	"bool": ClassBoolean, "boolean": ClassBoolean, "bit": ClassBoolean,
	"date": ClassDate, "time": ClassTime,
	"datetime": ClassTimestamp, "timestamp": ClassTimestamp,
	"json": ClassJSON,
}

// ParseType reads TINYINT(1) as boolean, the MySQL convention.
func (d *MysqlDialect) ParseType(sqlType string) (TypeSpec, bool) {
	base, args, ok := typeName(sqlType)
	if ok && base == "tinyint" && len(args) == 1 && args[0] == 1 {
		return TypeSpec{Class: ClassBoolean}, true
	}
	if ok && base == "char" && len(args) == 1 && args[0] == 36 {
		return TypeSpec{Class: ClassUUID}, true
	}
	return lookupType(sqlType, mysqlTypes)
}

func (d *MysqlDialect) RenderType(spec TypeSpec) string {
	switch spec.Class {
	case ClassSmallInt:
		return "SMALLINT"
	case ClassInteger:
		return "INT"
	case ClassBigInt:
		return "BIGINT"
	case ClassDecimal:
		return withPrecision("DECIMAL", spec)
	case ClassFloat:
		return "FLOAT"
	case ClassDouble:
		return "DOUBLE"
	case ClassChar:
		return withLength("CHAR", spec.Length, 1)
	case ClassVarchar:
		return withLength("VARCHAR", spec.Length, 255)
	case ClassText, ClassXML:
		return "LONGTEXT"
	case ClassBinary:
		return withLength("VARBINARY", spec.Length, 255)
	case ClassBlob:
		return "LONGBLOB"
	case ClassBoolean:
		return "TINYINT(1)"
	case ClassDate:
		return "DATE"
	case ClassTime, ClassInterval:
		return "TIME"
	case ClassTimestamp, ClassTimestampTZ:
		return "DATETIME"
	case ClassUUID:
		return "CHAR(36)"
	case ClassJSON:
		return "JSON"
	}
	return strings.ToUpper(string(spec.Class))
}

func (d *MysqlDialect) Function(fn Function) string {
	switch fn {
	case FuncCurrentTimestamp:
		return "CURRENT_TIMESTAMP"
	case FuncCurrentDate:
		return "CURRENT_DATE"
	case FuncCurrentTime:
		return "CURRENT_TIME"
	case FuncUUID:
		return "UUID()"
	}
	return ""
}

// MySQL has AUTO_INCREMENT instead of sequences: NULL takes the next value.
func (d *MysqlDialect) SequenceName(table, column string) string {
	return ""
}

func (d *MysqlDialect) SequenceDDL(table, column string, start int64) string {
	return ""
}

func (d *MysqlDialect) NextValue(sequence string) string {
	return "NULL"
}

func (d *MysqlDialect) InsertStatement(table string, cols []string, values []string) string {
	return DefaultInsertStatement(d, table, cols, values)
}
