/**
 * Result assembly
 *
 * Wraps an extractor's output, or its failure, into one tagged result. This is
 * the only place missing fields turn into placeholder text.
 */

package result

import (
	"encoding/json"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/extract"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Placeholder text for voter's ID fields that could not be read
const (
	CityNotFound       = "City not found."
	VINNotFound        = "VIN not found."
	CommissionNotFound = "Issuing commission not found."
	NameNotFound       = "Name not found."
	VotersIDType       = "Voter's ID"
)

// ErrorUnknown tags failures that carry no structured code
const ErrorUnknown apperrors.ErrorCode = "UNKNOWN"

// Result is the typed outcome of one extraction
type Result struct {
	Profile   document.Profile
	Fields    extract.Fields
	ErrorKind apperrors.ErrorCode
	Message   string
}

// Envelope is the serialized form handed to callers and caches
type Envelope struct {
	Status    string            `json:"status"`
	Profile   string            `json:"profile"`
	Fields    map[string]string `json:"fields,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// Success tags extracted fields
func Success(p document.Profile, fields extract.Fields) Result {
	return Result{Profile: p, Fields: fields}
}

// Failure tags an extraction error with its kind
func Failure(p document.Profile, err error) Result {
	kind, ok := apperrors.CodeOf(err)
	if !ok {
		kind = ErrorUnknown
	}
	msg := err.Error()
	var pe *apperrors.ProcessingError
	if apperrors.As(err, &pe) {
		msg = pe.Message
	}
	return Result{Profile: p, ErrorKind: kind, Message: msg}
}

// Assemble picks Success or Failure
func Assemble(p document.Profile, fields extract.Fields, err error) Result {
	if err != nil {
		return Failure(p, err)
	}
	return Success(p, fields)
}

// OK reports whether extraction succeeded
func (r Result) OK() bool {
	return r.ErrorKind == "" && r.Fields != nil
}

// Envelope serializes the result, substituting placeholders for missing fields
func (r Result) Envelope() Envelope {
	if !r.OK() {
		kind := r.ErrorKind
		if kind == "" {
			kind = ErrorUnknown
		}
		return Envelope{
			Status:    StatusError,
			Profile:   r.Profile.String(),
			ErrorKind: string(kind),
			Message:   r.Message,
		}
	}
	return Envelope{
		Status:  StatusSuccess,
		Profile: r.Profile.String(),
		Fields:  serializeFields(r.Fields),
	}
}

// MarshalJSON encodes the envelope
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Envelope())
}

// OK reports whether the envelope carries fields
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

func serializeFields(fields extract.Fields) map[string]string {
	switch f := fields.(type) {
	case extract.GWAResult:
		return map[string]string{
			"gwa": f.Formatted(),
		}
	case extract.ExamInfo:
		return map[string]string{
			"exam_type":  f.ExamType.Or(""),
			"name":       f.Name.Or(""),
			"score":      f.Score.Or(""),
			"date_taken": f.DateTaken.Or(""),
		}
	case extract.VotersIDInfo:
		return map[string]string{
			"city":       f.City.Or(CityNotFound),
			"vin":        f.VIN.Or(VINNotFound),
			"commission": f.Commission.Or(CommissionNotFound),
			"name":       f.Name.Or(NameNotFound),
			"id_type":    VotersIDType,
		}
	}
	return map[string]string{}
}
