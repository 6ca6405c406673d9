package extract

import (
	"regexp"
	"strings"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/fuzzy"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

// CommissionLabel is reported when the issuing commission is recognized
const CommissionLabel = "Commission on Election"

// gazetteer lists the city names a voter's ID line is corrected towards
var gazetteer = []string{
	"GENERAL SANTOS CITY",
	"DAVAO CITY",
	"CEBU CITY",
	"QUEZON CITY",
	"ZAMBOANGA CITY",
	"ILOILO CITY",
	"BAGUIO CITY",
	"BACOLOD CITY",
	"BATANGAS CITY",
	"TAGUM CITY",
	"CAGAYAN DE ORO CITY",
	"SAN FERNANDO CITY",
	"CALOOCAN CITY",
	"CITY OF PASIG",
	"MAKATI CITY",
}

var (
	vinLabelPattern   = regexp.MustCompile(`(?i)\bVIN[:\s-]*([A-Z0-9-]{12,})\b`)
	voterLabelPattern = regexp.MustCompile(`(?i)\bVOTER(?:'?S)?(?:\s*ID)?[:\s-]*([A-Z0-9-]{12,})\b`)
	birthDatePattern  = regexp.MustCompile(`(?i)date\s*of\s*birth`)
)

// VotersIDInfo is what can be read off a voter's ID card
type VotersIDInfo struct {
	City       Field
	VIN        Field
	Commission Field
	Name       Field
}

func (VotersIDInfo) Profile() document.Profile { return document.VotersID }

// VotersIDExtractor resolves the city, VIN, issuing commission and holder name
type VotersIDExtractor struct {
	tunables Tunables
}

// NewVotersIDExtractor creates a new VotersIDExtractor
func NewVotersIDExtractor(t Tunables) *VotersIDExtractor {
	return &VotersIDExtractor{tunables: t}
}

func (e *VotersIDExtractor) NeedsTokens() bool { return false }

func (e *VotersIDExtractor) Extract(doc *ocr.Document) (Fields, error) {
	return ExtractVotersID(doc.Text, doc.Lines, e.tunables), nil
}

// ExtractVotersID never fails; fields it cannot locate stay missing
func ExtractVotersID(text string, lines []string, t Tunables) VotersIDInfo {
	return VotersIDInfo{
		City: FirstMatch(lines, Strategy[[]string]{
			Name: "city-line",
			Find: func(lines []string) (string, bool) { return findCity(lines, t) },
		}),
		VIN: FirstMatch(text,
			Strategy[string]{Name: "vin-label", Find: matchGroup(vinLabelPattern)},
			Strategy[string]{Name: "voter-id-label", Find: matchGroup(voterLabelPattern)},
		),
		Commission: FirstMatch(lines, Strategy[[]string]{Name: "commission-line", Find: findCommission}),
		Name:       FirstMatch(lines, Strategy[[]string]{Name: "between-vin-and-birth-date", Find: findHolderName}),
	}
}

// cityStrategies resolve a single line that mentions a city
func cityStrategies(t Tunables) []Strategy[string] {
	return []Strategy[string]{
		{Name: "gazetteer", Find: func(line string) (string, bool) { return gazetteerMatch(line, t) }},
		{Name: "word-before-city", Find: wordBeforeCity},
	}
}

// findCity resolves the first line mentioning a city that any strategy accepts
func findCity(lines []string, t Tunables) (string, bool) {
	strategies := cityStrategies(t)
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "city") {
			continue
		}
		if v, ok := FirstMatch(line, strategies...).Get(); ok {
			return v, true
		}
	}
	return "", false
}

// gazetteerMatch corrects a noisy city phrase to a known city. Only the phrase
// naming the city is compared, so a trailing province does not dilute the score.
// The phrase must meet CityCutoff and its place name without the CITY designator
// must meet CityNameCutoff.
func gazetteerMatch(line string, t Tunables) (string, bool) {
	phrase := cityPhrase(strings.ToUpper(line))
	stem := placeName(phrase)

	var candidates []string
	for _, entry := range gazetteer {
		if fuzzy.Matches(stem, placeName(entry), t.CityNameCutoff) {
			candidates = append(candidates, entry)
		}
	}
	return fuzzy.CloseMatch(phrase, candidates, t.CityCutoff)
}

// cityPhrase cuts a line down to the words naming the city: everything up to and
// including the first CITY token, or for the "CITY OF X" form everything up to
// the first comma.
func cityPhrase(upper string) string {
	words := strings.Fields(upper)
	for i, w := range words {
		if trimPunct(w) != "CITY" {
			continue
		}
		if i > 0 {
			return strings.Join(trimAll(words[:i+1]), " ")
		}
		head, _, _ := strings.Cut(upper, ",")
		return strings.Join(trimAll(strings.Fields(head)), " ")
	}
	return strings.Join(trimAll(words), " ")
}

func trimPunct(w string) string {
	return strings.Trim(w, ",.;:")
}

func trimAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = trimPunct(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func placeName(s string) string {
	words := strings.Fields(s)
	kept := words[:0:0]
	for _, w := range words {
		if trimPunct(w) != "CITY" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func wordBeforeCity(line string) (string, bool) {
	words := strings.Fields(strings.ToUpper(line))
	for i := 0; i+1 < len(words); i++ {
		if trimPunct(words[i+1]) == "CITY" {
			return trimPunct(words[i]) + " CITY", true
		}
	}
	return "", false
}

func matchGroup(re *regexp.Regexp) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	}
}

func findCommission(lines []string) (string, bool) {
	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), "COMMISSION ON ELECTION") {
			return CommissionLabel, true
		}
	}
	return "", false
}

// findHolderName joins the lines printed between the VIN line and the
// date-of-birth label
func findHolderName(lines []string) (string, bool) {
	vinIdx := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "vin") {
			vinIdx = i
			break
		}
	}
	if vinIdx < 0 {
		return "", false
	}

	for j := vinIdx + 1; j < len(lines); j++ {
		if !birthDatePattern.MatchString(lines[j]) {
			continue
		}
		name := strings.TrimSpace(strings.Join(lines[vinIdx+1:j], " "))
		return name, name != ""
	}
	return "", false
}
