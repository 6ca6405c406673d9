package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/adverant/nexus/docscan-worker/internal/extract"
)

// TunablesEnvPrefix prefixes environment overrides, e.g. DOCSCAN_CITY_CUTOFF
const TunablesEnvPrefix = "DOCSCAN"

// NewTunablesViper returns a viper instance seeded with the default tunables
// and reading DOCSCAN_* overrides from the environment.
func NewTunablesViper() *viper.Viper {
	v := viper.New()
	d := extract.DefaultTunables()
	v.SetDefault("min_token_confidence", d.MinTokenConfidence)
	v.SetDefault("semester_cutoff", d.SemesterCutoff)
	v.SetDefault("phrase_cutoff", d.PhraseCutoff)
	v.SetDefault("phrase_window", d.PhraseWindow)
	v.SetDefault("value_window", d.ValueWindow)
	v.SetDefault("city_cutoff", d.CityCutoff)
	v.SetDefault("city_name_cutoff", d.CityNameCutoff)

	v.SetEnvPrefix(TunablesEnvPrefix)
	v.AutomaticEnv()
	return v
}

// LoadTunables reads tunables from path (if set) over the defaults.
// DOCSCAN_* environment variables override both.
func LoadTunables(path string) (extract.Tunables, error) {
	return TunablesFrom(NewTunablesViper(), path)
}

// TunablesFrom decodes tunables from v, reading path first when it is set
func TunablesFrom(v *viper.Viper, path string) (extract.Tunables, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return extract.Tunables{}, fmt.Errorf("failed to read tunables file %s: %w", path, err)
		}
	}

	var t extract.Tunables
	if err := v.Unmarshal(&t); err != nil {
		return extract.Tunables{}, fmt.Errorf("failed to decode tunables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return extract.Tunables{}, fmt.Errorf("invalid tunables: %w", err)
	}
	return t, nil
}
