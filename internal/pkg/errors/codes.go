package errors

// Error code constants. Detail text is English and shown to callers as-is.

// Generic codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeGeneralInvalid   = "GENERAL_VALIDATION_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// Auth codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Request shape codes.
const (
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeInvalidPathParam    = "INVALID_PATH_PARAMETER"
	CodeInvalidServiceName  = "INVALID_SERVICE_NAME"
	CodeOpenAPIRequest      = "OPENAPI_REQUEST_INVALID"
	CodeOpenAPIRoute        = "OPENAPI_ROUTE_INVALID"
	CodeOpenAPIResponse     = "OPENAPI_RESPONSE_INVALID"
	CodeSeedRequestRejected = "SEED_REQUEST_REJECTED"
)

// ErrInvalidServiceName creates a bad request for an unknown X-Service-Name header.
func ErrInvalidServiceName(value string) *AppError {
	return BadRequest(CodeInvalidServiceName, "unknown service name: "+value)
}

// ErrInvalidBody creates a bad request for an unparseable JSON body.
func ErrInvalidBody(err error) *AppError {
	e := BadRequest(CodeInvalidRequestBody, "request body could not be read")
	e.Err = err
	return e
}
