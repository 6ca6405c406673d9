/**
 * Preprocessing profiles
 *
 * Each supported document gets one fixed parameter set. Profiles are returned by
 * value so callers can never mutate the shared numbers.
 */

package preprocess

import "github.com/adverant/nexus/docscan-worker/internal/document"

// MaxHeight is the height every input is scaled down to before any other stage
const MaxHeight = 800

// Config holds the per-document preprocessing parameters.
// Every optional stage is skipped when its parameter is at its neutral value.
type Config struct {
	DenoiseStrength float64 // skip when <= 0
	ThresholdLevel  int     // binarize: > level becomes 255
	SharpenAmount   float64 // skip when <= 0; kernel centre is 5+amount
	Brightness      float64 // beta of the linear remap
	Contrast        float64 // alpha of the linear remap
	ResizeFactor    float64 // skip when 1.0
	BlurRadius      int     // skip when <= 0; kernel is 2r+1
	Invert          bool
	EdgeDetect      bool
}

// Neutral returns a config that only converts to gray, binarizes at threshold and
// leaves the remap as identity.
func Neutral(threshold int) Config {
	return Config{
		ThresholdLevel: threshold,
		Contrast:       1.0,
		ResizeFactor:   1.0,
	}
}

// TranscriptConfig is tuned for printed grade tables on light paper
func TranscriptConfig() Config {
	return Config{
		DenoiseStrength: 13,
		ThresholdLevel:  222,
		SharpenAmount:   1,
		Brightness:      50,
		Contrast:        2.0,
		ResizeFactor:    2.0,
		BlurRadius:      0,
		Invert:          true,
		EdgeDetect:      false,
	}
}

// ExamResultConfig is tuned for entrance exam result slips
func ExamResultConfig() Config {
	return Config{
		DenoiseStrength: 19,
		ThresholdLevel:  147,
		SharpenAmount:   0,
		Brightness:      50,
		Contrast:        2.0,
		ResizeFactor:    2.0,
		BlurRadius:      0,
		Invert:          true,
		EdgeDetect:      false,
	}
}

// VotersIDConfig is tuned for laminated voter's ID cards
func VotersIDConfig() Config {
	return ExamResultConfig()
}

// ForProfile returns the config bound to a document profile
func ForProfile(p document.Profile) (Config, bool) {
	switch p {
	case document.Transcript:
		return TranscriptConfig(), true
	case document.ExamResult:
		return ExamResultConfig(), true
	case document.VotersID:
		return VotersIDConfig(), true
	}
	return Config{}, false
}
