package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Tunables are the empirically fitted thresholds the extractors use.
// They reflect the noise of one OCR engine and are loaded from config.
type Tunables struct {
	MinTokenConfidence int     `mapstructure:"min_token_confidence"`
	SemesterCutoff     float64 `mapstructure:"semester_cutoff"`
	PhraseCutoff       float64 `mapstructure:"phrase_cutoff"`
	PhraseWindow       int     `mapstructure:"phrase_window"`
	ValueWindow        int     `mapstructure:"value_window"`
	CityCutoff         float64 `mapstructure:"city_cutoff"`
	CityNameCutoff     float64 `mapstructure:"city_name_cutoff"`
}

// DefaultTunables returns the values the extractors were fitted with
func DefaultTunables() Tunables {
	return Tunables{
		MinTokenConfidence: 60,
		SemesterCutoff:     0.7,
		PhraseCutoff:       0.7,
		PhraseWindow:       5,
		ValueWindow:        10,
		CityCutoff:         0.5,
		CityNameCutoff:     0.75,
	}
}

// Validate checks that every tunable is in range
func (t Tunables) Validate() error {
	if t.MinTokenConfidence < 0 || t.MinTokenConfidence > 100 {
		return fmt.Errorf("min_token_confidence must be between 0 and 100, got %d", t.MinTokenConfidence)
	}
	for name, v := range map[string]float64{
		"semester_cutoff":  t.SemesterCutoff,
		"phrase_cutoff":    t.PhraseCutoff,
		"city_cutoff":      t.CityCutoff,
		"city_name_cutoff": t.CityNameCutoff,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	if t.PhraseWindow < 1 {
		return fmt.Errorf("phrase_window must be positive, got %d", t.PhraseWindow)
	}
	if t.ValueWindow < 2 {
		return fmt.Errorf("value_window must be at least 2, got %d", t.ValueWindow)
	}
	return nil
}

// Fingerprint identifies this set of values. Results extracted with different
// tunables get different fingerprints.
func (t Tunables) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", t)))
	return hex.EncodeToString(sum[:8])
}
