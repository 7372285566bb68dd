package httputil

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("invalid JSON: empty body")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes error on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return "", false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a trimmed string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// MaxPageOffset bounds page*size so the row offset fits every SQL backend
const MaxPageOffset = math.MaxInt32

// ParsePageRequest reads the page and size query parameters. Unparseable
// values fall back to the defaults; page is clamped to >= 0, a size below 1
// becomes defaultSize and a size above maxSize becomes maxSize. A page whose
// offset would exceed MaxPageOffset is clamped to the last addressable page,
// which is past the end of any real result set.
func ParsePageRequest(r *http.Request, defaultSize, maxSize int) (page, size int) {
	page, err := ParseQueryInt(r, "page", 0)
	if err != nil || page < 0 {
		page = 0
	}
	size, err = ParseQueryInt(r, "size", defaultSize)
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	if page > MaxPageOffset/size {
		page = MaxPageOffset / size
	}
	return page, size
}

// IsBlank reports whether s is empty after trimming whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validator is a function that validates a value and returns an error message if invalid
type Validator func() (bool, string)

// RequireNonBlank returns a Validator failing when value is blank
func RequireNonBlank(value, fieldName string) Validator {
	return func() (bool, string) {
		if IsBlank(value) {
			return false, fmt.Sprintf("%s is required", fieldName)
		}
		return true, ""
	}
}

// Check returns a Validator failing with message when ok is false
func Check(ok bool, message string) Validator {
	return func() (bool, string) {
		return ok, message
	}
}

// FirstInvalid runs validators in order and returns the first error
// message, or "" when all pass
func FirstInvalid(validators ...Validator) string {
	for _, validator := range validators {
		if valid, errMsg := validator(); !valid {
			return errMsg
		}
	}
	return ""
}

// ValidateAll runs multiple validators and writes the first error
func ValidateAll(w http.ResponseWriter, validators ...Validator) bool {
	if errMsg := FirstInvalid(validators...); errMsg != "" {
		WriteValidationError(w, errMsg)
		return false
	}
	return true
}
