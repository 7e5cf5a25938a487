package api

import (
	"errors"
	"net/http"

	"github.com/queryhub/nl2sql/pkg/pipeline"
)

// mapStageError maps a pipeline.StageError to an HTTP status and the
// stable error_code/stage fields spec.md §6.3/§7 require on every error
// response. Falls back to 500/"Internal" for errors the pipeline itself
// didn't produce.
func mapStageError(err error) (status int, resp ErrorResponse) {
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), ErrorCode: "Internal"}
	}

	resp = ErrorResponse{
		Error:     stageErr.Error(),
		ErrorCode: string(stageErr.Kind),
		Stage:     stageErr.Stage,
	}

	switch stageErr.Kind {
	case pipeline.KindValidation, pipeline.KindSQLGen, pipeline.KindIntentParse, pipeline.KindDBSyntax:
		status = http.StatusBadRequest
	case pipeline.KindCancelled:
		status = http.StatusRequestTimeout
	case pipeline.KindDBTimeout:
		status = http.StatusGatewayTimeout
	case pipeline.KindDBPermission:
		status = http.StatusForbidden
	case pipeline.KindSchemaEmpty, pipeline.KindSchemaEmbed, pipeline.KindSchemaInvalid, pipeline.KindSchemaDrift,
		pipeline.KindCacheIO, pipeline.KindDBConn, pipeline.KindInterpret:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	return status, resp
}
