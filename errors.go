package parcel

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrInvalidDocument indicates the input is not a well-formed document object.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidContent indicates a body declared binary holds non-base64 text.
	ErrInvalidContent = errors.New("invalid content")

	// ErrEncode indicates a value could not be encoded.
	ErrEncode = errors.New("encode failed")

	// ErrInvalidHeader indicates a header name or value failed syntax validation.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidMask indicates an unknown mask type or a mask missing its configuration.
	ErrInvalidMask = errors.New("invalid mask")
)

// FormatError reports input that could not be parsed as a document object.
// It is fatal to the decode call.
type FormatError struct {
	Err         error  // Underlying sentinel error (ErrInvalidDocument)
	ContentType string // Content type of the format that rejected the input
	Cause       error  // Original parse error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s object: %v", formatName(e.ContentType), e.Cause)
	}
	return fmt.Sprintf("invalid %s object", formatName(e.ContentType))
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DecodeError reports a body whose bytes could not be recovered.
type DecodeError struct {
	Err   error  // Underlying sentinel error (ErrInvalidContent)
	Field string // Path of the field that failed (e.g. "RequestMessage.Content")
	Cause error  // Original error from the underlying operation
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode field %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("decode field %s", e.Field)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a value that could not be encoded.
type EncodeError struct {
	Err   error  // Underlying sentinel error (ErrEncode)
	Field string // Path of the field that failed, empty for the root value
	Cause error  // Original error
}

func (e *EncodeError) Error() string {
	field := e.Field
	if field == "" {
		field = "<root>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("encode field %s: %v", field, e.Cause)
	}
	return fmt.Sprintf("encode field %s", field)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid codec option.
type ConfigError struct {
	Err    error  // Underlying sentinel error (ErrInvalidMask, etc.)
	Header string // Header the option targeted
	Mask   string // Mask type that was invalid
}

func (e *ConfigError) Error() string {
	if e.Header != "" && e.Mask != "" {
		return fmt.Sprintf("%s %q (header %s)", e.Err.Error(), e.Mask, e.Header)
	}
	if e.Mask != "" {
		return fmt.Sprintf("%s %q", e.Err.Error(), e.Mask)
	}
	if e.Header != "" {
		return fmt.Sprintf("%s (header %s)", e.Err.Error(), e.Header)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// newFormatError creates a FormatError for unparseable input.
func newFormatError(contentType string, cause error) error {
	return &FormatError{
		Err:         ErrInvalidDocument,
		ContentType: contentType,
		Cause:       cause,
	}
}

// newDecodeError creates a DecodeError for unrecoverable body bytes.
func newDecodeError(field string, cause error) error {
	return &DecodeError{
		Err:   ErrInvalidContent,
		Field: field,
		Cause: cause,
	}
}

// newEncodeError creates an EncodeError for values that cannot be encoded.
func newEncodeError(field string, cause error) error {
	return &EncodeError{
		Err:   ErrEncode,
		Field: field,
		Cause: cause,
	}
}

// formatName turns a content type into a short display name:
// application/json -> JSON, application/x-protobuf -> PROTOBUF.
func formatName(contentType string) string {
	name := contentType
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimPrefix(name, "x-")
	if name == "" {
		return "document"
	}
	return strings.ToUpper(name)
}
