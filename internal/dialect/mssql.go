package dialect

import (
	"fmt"
	"strings"
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string { return "mssql" }

func (d *MSSQLDialect) NormalizeIdentifier(name string) string {
	return name
}

func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	if isSimpleIdentifier(name) {
		return name
	}
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteString uses N'' for anything outside ASCII so NVARCHAR columns keep it.
func (d *MSSQLDialect) QuoteString(s string) string {
	for _, r := range s {
		if r > 127 {
			return "N" + DefaultQuoteString(s)
		}
	}
	return DefaultQuoteString(s)
}

func (d *MSSQLDialect) Boolean(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *MSSQLDialect) DateLiteral(text string, withTime bool) string {
	if withTime {
		return d.QuoteString(timestampText(text))
	}
	return d.QuoteString(datePart(text))
}

func (d *MSSQLDialect) NativeBoolean() bool    { return false }
func (d *MSSQLDialect) BackslashEscapes() bool { return false }

var mssqlTypes = map[string]TypeClass{
	"tinyint": ClassSmallInt, "smallint": ClassSmallInt, "int": ClassInteger, "bigint": ClassBigInt,
	"decimal": ClassDecimal, "numeric": ClassDecimal, "money": ClassDecimal, "smallmoney": ClassDecimal,
	"real": ClassFloat, "float": ClassDouble,
	"char": ClassChar, "nchar": ClassChar,
	"varchar": ClassVarchar, "nvarchar": ClassVarchar,
	"text": ClassText, "ntext": ClassText,
	"binary": ClassBinary, "varbinary": ClassBinary, "image": ClassBlob,
	"bit": ClassBoolean,
	"date": ClassDate, "time": ClassTime,
	"datetime": ClassTimestamp, "datetime2": ClassTimestamp, "smalldatetime": ClassTimestamp,
	"datetimeoffset": ClassTimestampTZ,
	"uniqueidentifier": ClassUUID,
	"xml": ClassXML,
}

func (d *MSSQLDialect) ParseType(sqlType string) (TypeSpec, bool) {
	return lookupType(sqlType, mssqlTypes)
}

func (d *MSSQLDialect) RenderType(spec TypeSpec) string {
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
		return "REAL"
	case ClassDouble:
		return "FLOAT"
	case ClassChar:
		return withLength("NCHAR", spec.Length, 1)
	case ClassVarchar:
		if spec.Length <= 0 || spec.Length > 4000 {
			return "NVARCHAR(MAX)"
		}
		return withLength("NVARCHAR", spec.Length, 0)
	case ClassText, ClassJSON:
		return "NVARCHAR(MAX)"
	case ClassBinary:
		return withLength("VARBINARY", spec.Length, 8000)
	case ClassBlob:
		return "VARBINARY(MAX)"
	case ClassBoolean:
		return "BIT"
	case ClassDate:
		return "DATE"
	case ClassTime:
		return "TIME"
	case ClassTimestamp:
		return "DATETIME2"
	case ClassTimestampTZ:
		return "DATETIMEOFFSET"
	case ClassInterval:
		return "NVARCHAR(64)"
	case ClassUUID:
		return "UNIQUEIDENTIFIER"
	case ClassXML:
		return "XML"
	}
	return strings.ToUpper(string(spec.Class))
}

func (d *MSSQLDialect) Function(fn Function) string {
	switch fn {
	case FuncCurrentTimestamp:
		return "SYSDATETIME()"
	case FuncCurrentDate:
		return "CAST(GETDATE() AS DATE)"
	case FuncCurrentTime:
		return "CAST(GETDATE() AS TIME)"
	case FuncUUID:
		return "NEWID()"
	}
	return ""
}

func (d *MSSQLDialect) SequenceName(table, column string) string {
	return table + "_" + column + "_seq"
}

func (d *MSSQLDialect) SequenceDDL(table, column string, start int64) string {
	return fmt.Sprintf("CREATE SEQUENCE %s START WITH %d INCREMENT BY 1;", d.QuoteIdentifier(d.SequenceName(table, column)), max(start, 1))
}

func (d *MSSQLDialect) NextValue(sequence string) string {
	return "NEXT VALUE FOR " + d.QuoteIdentifier(sequence)
}

func (d *MSSQLDialect) InsertStatement(table string, cols []string, values []string) string {
	return DefaultInsertStatement(d, table, cols, values)
}
