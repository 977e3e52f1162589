package dialect

import (
	"fmt"
	"strings"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

// Oracle stores unquoted names upper case.
func (d *OracleDialect) NormalizeIdentifier(name string) string {
	return strings.ToUpper(name)
}

func (d *OracleDialect) QuoteIdentifier(name string) string {
	if isSimpleIdentifier(name) && name == strings.ToUpper(name) && !oracleReserved[name] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var oracleReserved = map[string]bool{
	"ACCESS": true, "COMMENT": true, "DATE": true, "FILE": true, "LEVEL": true,
	"MODE": true, "NUMBER": true, "ORDER": true, "RESOURCE": true, "ROW": true,
	"SESSION": true, "SIZE": true, "START": true, "TABLE": true, "UID": true,
	"USER": true, "VALUES": true,
}

func (d *OracleDialect) QuoteString(s string) string {
	return DefaultQuoteString(s)
}

// Oracle has no boolean column type before 23c; flags are NUMBER(1).
func (d *OracleDialect) Boolean(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *OracleDialect) DateLiteral(text string, withTime bool) string {
	if withTime {
		ts := timestampText(text)
		format := "YYYY-MM-DD HH24:MI:SS"
		if strings.Contains(ts, ".") {
			format += ".FF"
		}
		return fmt.Sprintf("TO_TIMESTAMP(%s, '%s')", d.QuoteString(ts), format)
	}
	return fmt.Sprintf("TO_DATE(%s, 'YYYY-MM-DD')", d.QuoteString(datePart(text)))
}

func (d *OracleDialect) NativeBoolean() bool    { return false }
func (d *OracleDialect) BackslashEscapes() bool { return false }

var oracleTypes = map[string]TypeClass{
	"number": ClassDecimal, "numeric": ClassDecimal, "decimal": ClassDecimal,
	"integer": ClassInteger, "int": ClassInteger, "smallint": ClassSmallInt,
	"binary_float": ClassFloat, "float": ClassDouble, "binary_double": ClassDouble,
	"char": ClassChar, "nchar": ClassChar,
	"varchar2": ClassVarchar, "nvarchar2": ClassVarchar, "varchar": ClassVarchar,
	"clob": ClassText, "nclob": ClassText, "long": ClassText,
	"raw": ClassBinary, "blob": ClassBlob, "long raw": ClassBlob,
	"date": ClassTimestamp,
	"timestamp": ClassTimestamp,
	"timestamp with time zone": ClassTimestampTZ, "timestamp with local time zone": ClassTimestampTZ,
	"interval day to second": ClassInterval, "interval year to month": ClassInterval,
	"xmltype": ClassXML,
	"json": ClassJSON,
}

// ParseType narrows NUMBER(p) to integer classes and NUMBER(1) to boolean.
func (d *OracleDialect) ParseType(sqlType string) (TypeSpec, bool) {
	base, args, ok := typeName(sqlType)
	if ok && (base == "number" || base == "numeric") && len(args) > 0 {
		scale := 0
		if len(args) > 1 {
			scale = args[1]
		}
		switch {
		case args[0] == 1 && scale == 0:
			return TypeSpec{Class: ClassBoolean}, true
		case scale == 0 && integerClass(args[0]) != ClassDecimal:
			return TypeSpec{Class: integerClass(args[0])}, true
		}
	}
	if ok && base == "raw" && len(args) > 0 && args[0] == 16 {
		return TypeSpec{Class: ClassUUID}, true
	}
	return lookupType(sqlType, oracleTypes)
}

func (d *OracleDialect) RenderType(spec TypeSpec) string {
	switch spec.Class {
	case ClassSmallInt:
		return "NUMBER(5)"
	case ClassInteger:
		return "NUMBER(10)"
	case ClassBigInt:
		return "NUMBER(19)"
	case ClassDecimal:
		return withPrecision("NUMBER", spec)
	case ClassFloat:
		return "BINARY_FLOAT"
	case ClassDouble:
		return "BINARY_DOUBLE"
	case ClassChar:
		return withLength("CHAR", spec.Length, 1)
	case ClassVarchar:
		if spec.Length > 4000 {
			return "CLOB"
		}
		return withLength("VARCHAR2", spec.Length, 4000)
	case ClassText, ClassJSON:
		return "CLOB"
	case ClassBinary:
		return withLength("RAW", spec.Length, 2000)
	case ClassBlob:
		return "BLOB"
	case ClassBoolean:
		return "NUMBER(1)"
	case ClassDate:
		return "DATE"
	case ClassTime:
		return "VARCHAR2(8)"
	case ClassTimestamp:
		return "TIMESTAMP"
	case ClassTimestampTZ:
		return "TIMESTAMP WITH TIME ZONE"
	case ClassInterval:
		return "INTERVAL DAY TO SECOND"
	case ClassUUID:
		return "RAW(16)"
	case ClassXML:
		return "XMLTYPE"
	}
	return strings.ToUpper(string(spec.Class))
}

func (d *OracleDialect) Function(fn Function) string {
	switch fn {
	case FuncCurrentTimestamp:
		return "SYSTIMESTAMP"
	case FuncCurrentDate:
		return "TRUNC(SYSDATE)"
	case FuncCurrentTime:
		return "TO_CHAR(SYSDATE, 'HH24:MI:SS')"
	case FuncUUID:
		return "SYS_GUID()"
	}
	return ""
}

// SequenceName is <TABLE>_SEQ; Oracle identifiers are capped at 128 bytes.
func (d *OracleDialect) SequenceName(table, column string) string {
	name := strings.ToUpper(table) + "_SEQ"
	if len(name) > 128 {
		name = name[:128]
	}
	return name
}

func (d *OracleDialect) SequenceDDL(table, column string, start int64) string {
	return fmt.Sprintf("CREATE SEQUENCE %s START WITH %d INCREMENT BY 1 NOCACHE;", d.QuoteIdentifier(d.SequenceName(table, column)), max(start, 1))
}

func (d *OracleDialect) NextValue(sequence string) string {
	return d.QuoteIdentifier(d.NormalizeIdentifier(sequence)) + ".NEXTVAL"
}

func (d *OracleDialect) InsertStatement(table string, cols []string, values []string) string {
	return DefaultInsertStatement(d, table, cols, values)
}
