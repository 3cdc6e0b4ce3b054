package errors

import "net/http"

// Code represents an error code
type Code string

const (
	CodeUnknown              Code = "UNKNOWN"               // Unknown error occurred
	CodeInternalError        Code = "INTERNAL_ERROR"        // Internal system error
	CodeInvalidParameter     Code = "INVALID_PARAMETER"     // Invalid parameter provided
	CodeMissingParameter     Code = "MISSING_PARAMETER"     // Required parameter missing
	CodeNetworkTimeout       Code = "NETWORK_TIMEOUT"       // Network operation timed out
	CodeIoError              Code = "IO_ERROR"              // Input/output operation failed
	CodeNotFound             Code = "NOT_FOUND"             // Not found
	CodeAlreadyExists        Code = "ALREADY_EXISTS"        // Already exists
	CodeConfigurationInvalid Code = "CONFIGURATION_INVALID" // Configuration invalid
	CodeFetchFailed          Code = "FETCH_FAILED"          // Remote page could not be fetched
	CodeParseFailed          Code = "PARSE_FAILED"          // Page body could not be parsed
	CodeScrapeFailed         Code = "SCRAPE_FAILED"         // Scrape pipeline failed
	CodeRateLimited          Code = "RATE_LIMITED"          // Client exceeded the rate limit
	CodeUnauthorized         Code = "UNAUTHORIZED"          // Missing or invalid API key
)

// HTTPStatus maps a code to the status the HTTP transport answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeInvalidParameter, CodeFetchFailed, CodeParseFailed, CodeScrapeFailed:
		return http.StatusBadRequest
	case CodeMissingParameter:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNetworkTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
