// Package oaipmh holds the server-side OAI-PMH 2.0 protocol vocabulary:
// verb names, error codes and the XML response envelope.
// Reference: https://www.openarchives.org/OAI/openarchivesprotocol.html
package oaipmh

import "fmt"

// Protocol error codes defined by OAI-PMH 2.0. These are returned inside a
// well-formed response envelope; the HTTP call itself still succeeds.
const (
	CodeBadArgument             = "badArgument"
	CodeBadResumptionToken      = "badResumptionToken"
	CodeBadVerb                 = "badVerb"
	CodeCannotDisseminateFormat = "cannotDisseminateFormat"
	CodeIDDoesNotExist          = "idDoesNotExist"
	CodeNoRecordsMatch          = "noRecordsMatch"
	CodeNoSetHierarchy          = "noSetHierarchy"
)

// ProtocolError is a protocol-level failure rendered as an <error> element.
// It is distinct from configuration faults, which abort the request before
// any envelope is built.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oaipmh: %s: %s", e.Code, e.Message)
}

func Errorf(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func BadArgument(message string) *ProtocolError {
	return &ProtocolError{Code: CodeBadArgument, Message: message}
}

func NoRecordsMatch() *ProtocolError {
	return &ProtocolError{Code: CodeNoRecordsMatch, Message: "no records match the given criteria"}
}
