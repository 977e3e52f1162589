package dialect

// Dialect abstracts database-specific rendering of data statements.
type Dialect interface {
	Name() string

	// Identifiers
	NormalizeIdentifier(name string) string // case folding applied on output
	QuoteIdentifier(name string) string     // quotes only when required

	// Literals
	QuoteString(s string) string
	Boolean(b bool) string
	DateLiteral(text string, withTime bool) string
	NativeBoolean() bool
	BackslashEscapes() bool

	// Types
	ParseType(sqlType string) (TypeSpec, bool)
	RenderType(spec TypeSpec) string

	// Functions
	Function(fn Function) string

	// Sequences (Surrogate Keys). SequenceDDL is empty when the dialect
	// generates keys natively.
	SequenceName(table, column string) string
	SequenceDDL(table, column string, start int64) string
	NextValue(sequence string) string

	// Statement Generation
	InsertStatement(table string, cols []string, values []string) string
}
