// Package errs holds the typed error kinds surfaced by the batch runner core.
//
// Errors the core returns carry a Kind (MissingPortError is its own type)
// so callers (the CLI, or any future GUI) can distinguish "fatal to this operation" from "recoverable at
// startup" without string-matching messages.
package errs

import "fmt"

// Kind tags an error with the category described in the error handling design.
type Kind string

const (
	KindMissingPort           Kind = "missing_port"
	KindInvalidConfigDefault  Kind = "invalid_config_default"
	KindInvalidConfigType     Kind = "invalid_config_type"
	KindMissingConfigGroup    Kind = "missing_config_group"
	KindDatasetManifest       Kind = "dataset_manifest_error"
	KindDatasetFileNotFound   Kind = "dataset_file_not_found"
	KindImageListMissingImage Kind = "image_list_missing_image"
	KindDuplicateDatasetName  Kind = "duplicate_dataset_name"
	KindParserNotFound        Kind = "parser_not_found"
	KindNoImageList           Kind = "no_image_list"
	KindMissingDatasetName    Kind = "missing_dataset_name"
	KindJobInit               Kind = "job_init_exception"
)

// Error is the typed error returned across package boundaries in this module.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, wrapped error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: wrapped}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}

// MissingPortError is raised by DatasetPortsGroup.GetEnvPorts when a dataset
// lacks one or more ports a pipeline requires.
type MissingPortError struct {
	DatasetName  string
	MissingPorts []string
}

func (e *MissingPortError) Error() string {
	return fmt.Sprintf("missing_port: dataset %q is missing required ports: %v", e.DatasetName, e.MissingPorts)
}

// DatasetManifestError wraps the recoverable-at-startup family of dataset
// manifest errors (§7). The Kind distinguishes the subkind.
type DatasetManifestError struct {
	Kind    Kind
	Message string
}

func (e *DatasetManifestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
