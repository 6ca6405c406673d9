package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

const sampleVotersID = `REPUBLIC OF THE PHILIPPINES
COMMISSION ON ELECTIONS
VIN: 1234-5678-9012
DELA CRUZ
JUAN SANTOS
DATE OF BIRTH: 01/02/1990
GENERAL SANTOS CITY`

func extractVoters(text string) VotersIDInfo {
	return ExtractVotersID(text, ocr.SplitLines(text), DefaultTunables())
}

func TestExtractVotersID_FullCard(t *testing.T) {
	info := extractVoters(sampleVotersID)

	assert.Equal(t, "GENERAL SANTOS CITY", value(t, info.City))
	assert.Equal(t, "1234-5678-9012", value(t, info.VIN))
	assert.Equal(t, "Commission on Election", value(t, info.Commission))
	assert.Equal(t, "DELA CRUZ JUAN SANTOS", value(t, info.Name))
}

func TestExtractVotersID_City(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
		found bool
	}{
		{"gazetteer exact", []string{"GENERAL SANTOS CITY"}, "GENERAL SANTOS CITY", true},
		{"gazetteer corrects misread", []string{"General Sant0s City"}, "GENERAL SANTOS CITY", true},
		{"gazetteer corrects digit", []string{"QUEZ0N CITY"}, "QUEZON CITY", true},
		{"city of form", []string{"CITY OF PASIG"}, "CITY OF PASIG", true},
		{"unknown city falls back to preceding word", []string{"MAASIN CITY"}, "MAASIN CITY", true},
		{"province after city", []string{"GENERAL SANTOS CITY SOUTH COTABATO"}, "GENERAL SANTOS CITY", true},
		{"province after comma", []string{"QUEZON CITY, METRO MANILA"}, "QUEZON CITY", true},
		{"province sharing the city name", []string{"DAVAO CITY, DAVAO DEL SUR"}, "DAVAO CITY", true},
		{"city of form with province", []string{"CITY OF PASIG, METRO MANILA"}, "CITY OF PASIG", true},
		{"unknown city with province falls back", []string{"MAASIN CITY, SOUTHERN LEYTE"}, "MAASIN CITY", true},
		{"first qualifying line wins", []string{"CITY HALL", "MAASIN CITY", "DAVAO CITY"}, "MAASIN CITY", true},
		{"no city line", []string{"PUROK 5", "BARANGAY SAN ISIDRO"}, "", false},
		{"city without preceding word", []string{"CITY"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVotersID("", tt.lines, DefaultTunables()).City.Get()
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractVotersID_VIN(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"vin label", "VIN: 1234-5678-9012", "1234-5678-9012"},
		{"lower case label", "vin 9876543210AB", "9876543210AB"},
		{"voter's id label", "VOTER'S ID: 7777-8888-9999", "7777-8888-9999"},
		{"vin label preferred over voter label", "VOTERS ID 1111-2222-3333\nVIN: 4444-5555-6666", "4444-5555-6666"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, value(t, extractVoters(tt.text).VIN))
		})
	}

	assert.False(t, extractVoters("VIN: 12345").VIN.Present())
}

func TestExtractVotersID_NameNeedsBirthDateAfterVIN(t *testing.T) {
	info := extractVoters("DATE OF BIRTH 01/02/1990\nVIN: 1234-5678-9012\nJUAN")
	assert.False(t, info.Name.Present())

	info = extractVoters("VIN: 1234-5678-9012\nDate of Birth")
	assert.False(t, info.Name.Present())

	info = extractVoters("VIN: 1234-5678-9012\n  ANA  \nREYES\nDateofBirth 1990")
	assert.Equal(t, "ANA REYES", value(t, info.Name))
}

func TestExtractVotersID_AdjacentVINAndBirthDateLeavesNameMissing(t *testing.T) {
	info := extractVoters("VIN: 1234-5678-9012\nDATE OF BIRTH: 01/02/1990")
	assert.Equal(t, "1234-5678-9012", value(t, info.VIN))
	assert.False(t, info.Name.Present())
}

func TestExtractVotersID_EmptyCard(t *testing.T) {
	assert.Equal(t, VotersIDInfo{}, extractVoters(""))
}

func TestVotersIDExtractor(t *testing.T) {
	e := NewVotersIDExtractor(DefaultTunables())
	assert.False(t, e.NeedsTokens())

	fields, err := e.Extract(ocr.NewDocument(sampleVotersID, nil))
	require.NoError(t, err)
	assert.Equal(t, document.VotersID, fields.Profile())
}

func TestGazetteer_EntriesResolveToThemselves(t *testing.T) {
	require.Len(t, gazetteer, 15)
	for _, city := range gazetteer {
		got, ok := ExtractVotersID("", []string{city}, DefaultTunables()).City.Get()
		assert.True(t, ok, city)
		assert.Equal(t, city, got)
	}
}

func TestTunables_Fingerprint(t *testing.T) {
	a := DefaultTunables()
	b := DefaultTunables()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.PhraseWindow = 6
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestForProfile(t *testing.T) {
	for _, p := range document.All() {
		e, ok := ForProfile(p, DefaultTunables())
		require.True(t, ok)
		assert.NotNil(t, e)
	}
	_, ok := ForProfile(document.Profile("passport"), DefaultTunables())
	assert.False(t, ok)
}

func TestTunables_Validate(t *testing.T) {
	require.NoError(t, DefaultTunables().Validate())

	bad := DefaultTunables()
	bad.CityCutoff = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultTunables()
	bad.MinTokenConfidence = 101
	assert.Error(t, bad.Validate())

	bad = DefaultTunables()
	bad.PhraseWindow = 0
	assert.Error(t, bad.Validate())
}
