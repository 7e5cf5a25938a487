package pipeline

import "fmt"

// Kind identifies one of the error categories in spec.md §7.
type Kind string

const (
	KindSchemaInvalid Kind = "SchemaInvalid"
	KindSchemaDrift   Kind = "SchemaDrift"
	KindSchemaEmpty   Kind = "SchemaEmpty"
	KindSchemaEmbed   Kind = "SchemaEmbed"
	KindIntentParse   Kind = "IntentParse"
	KindCacheIO       Kind = "CacheIO"
	KindSQLGen        Kind = "SQLGen"
	KindValidation    Kind = "Validation"
	KindDBTimeout     Kind = "DBTimeout"
	KindDBSyntax      Kind = "DBSyntax"
	KindDBPermission  Kind = "DBPermission"
	KindDBConn        Kind = "DBConn"
	KindInterpret     Kind = "Interpret"
	KindCancelled     Kind = "Cancelled"
)

// StageError is the uniform error shape every pipeline stage returns,
// carrying the taxonomy kind from spec.md §7 plus which stage produced it.
type StageError struct {
	Stage string
	Kind  Kind
	Msg   string
	Cause error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Stage, e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Stage, e.Kind, e.Msg)
}

func (e *StageError) Unwrap() error { return e.Cause }

func newStageError(stage string, kind Kind, msg string, cause error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Msg: msg, Cause: cause}
}
