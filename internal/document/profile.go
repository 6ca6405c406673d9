/**
 * Document profiles
 *
 * A profile names one of the supported admissions documents. It selects both the
 * preprocessing parameters and the extractor, and is always chosen by the caller.
 */

package document

import (
	"fmt"
	"strings"
)

// Profile identifies a supported document type
type Profile string

const (
	Transcript Profile = "transcript"
	ExamResult Profile = "exam_result"
	VotersID   Profile = "voters_id"
)

// All lists every supported profile in a stable order
func All() []Profile {
	return []Profile{Transcript, ExamResult, VotersID}
}

// aliases accepted from callers, including the upload field names used by the admissions portal
var aliases = map[string]Profile{
	"transcript":           Transcript,
	"school_record":        Transcript,
	"school-record-upload": Transcript,
	"gwa":                  Transcript,
	"exam_result":          ExamResult,
	"exam":                 ExamResult,
	"exam-result-upload":   ExamResult,
	"voters_id":            VotersID,
	"voter_id":             VotersID,
	"voters-id-upload":     VotersID,
}

// Parse resolves a caller-supplied tag to a Profile
func Parse(tag string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if p, ok := aliases[key]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown document profile %q", tag)
}

// Valid reports whether p is one of the supported profiles
func (p Profile) Valid() bool {
	switch p {
	case Transcript, ExamResult, VotersID:
		return true
	}
	return false
}

func (p Profile) String() string {
	return string(p)
}
