package entities

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/textnorm"
)

// Confidence levels assigned by the extractor.
const (
	confExplicit    = 1.0 // explicit syntax such as a product: prefix
	confUnambiguous = 0.9 // full alias or pattern match
	confFuzzy       = 0.7 // brand-only breed match ("cobb" without a line number)
)

var (
	productRe = regexp.MustCompile(`(?i)\bproduct:\s*([a-zA-Z0-9_-]+)`)

	// Age ranges first so "between 14 and 21 days" does not also count as a
	// point age of 21 days.
	ageRangeRe = regexp.MustCompile(`\b(?:between|entre|de)\s+(\d{1,3})\s+(?:and|et|a|y)\s+(\d{1,3})\s*(?:days?|jours?|dias?)\b`)
	ageWeeksRe = regexp.MustCompile(`\b(\d{1,2})\s*(?:weeks?|semaines?|semanas?)\b`)
	ageDaysRe  = regexp.MustCompile(`\b(\d{1,3})\s*(?:days?|jours?|dias?)\b`)
	dayOfAgeRe = regexp.MustCompile(`\b(?:day|jour|dia|j|d)\s?(\d{1,3})\b`)
)

// comparisonMarkers is the per-language lexical marker vocabulary. Presence
// of a marker is recorded on the extraction; the comparative detector decides
// whether the query is actually comparative.
var comparisonMarkers = []string{
	// English
	"vs", "versus", "compare", "compared", "comparison", "difference",
	"ratio", "average", "evolution", "and",
	// French (accent-folded)
	"comparer", "comparez", "comparaison", "contre", "rapport", "moyenne", "et",
	// Spanish (accent-folded)
	"comparar", "compara", "comparacion", "diferencia", "promedio", "evolucion", "y",
}

// Extractor parses free text into typed entities using alias tables and
// pattern rules. Extraction never fails: unresolved fields are simply absent.
type Extractor struct {
	logger   *observability.Logger
	breeds   []aliasEntry
	metrics  []aliasEntry
	sexes    []aliasEntry
	products []aliasEntry
}

// NewExtractor creates an extractor from a compiled alias table.
func NewExtractor(logger *observability.Logger, table *AliasTable) *Extractor {
	if table == nil {
		table = DefaultAliasTable()
	}
	breeds, metrics, sexes, products := table.compile()
	return &Extractor{
		logger:   logger,
		breeds:   breeds,
		metrics:  metrics,
		sexes:    sexes,
		products: products,
	}
}

// Extract parses a query into an entity snapshot.
func (x *Extractor) Extract(query string) ExtractedEntities {
	out := ExtractedEntities{Confidence: make(map[Field]float64)}
	if strings.TrimSpace(query) == "" {
		return out
	}

	normalized := textnorm.Normalize(query)

	// Explicit product scoping wins over everything else and is matched on
	// the raw query so the identifier keeps its original casing. A known
	// product name without the prefix also scopes, at keyword confidence.
	if m := productRe.FindStringSubmatch(query); m != nil {
		out.ProductID = m[1]
		out.Confidence[FieldProduct] = confExplicit
	} else {
		x.extractProduct(normalized, &out)
	}

	x.extractBreeds(normalized, &out)
	x.extractMetric(normalized, &out)
	x.extractSexes(normalized, &out)
	x.extractAges(normalized, &out)
	x.extractMarkers(normalized, &out)

	x.logger.Debug().
		Str("query", normalized).
		Str("breed", out.Breed).
		Str("metric", string(out.Metric)).
		Str("sex", string(out.Sex)).
		Int("breed_mentions", len(out.BreedMentions)).
		Msg("Extracted entities")

	return out
}

func (x *Extractor) extractBreeds(normalized string, out *ExtractedEntities) {
	type mention struct {
		pos       int
		canonical string
		alias     string
		conf      float64
	}
	var mentions []mention
	var consumed [][2]int
	seen := make(map[string]bool)

	// Aliases are sorted longest first; a span claimed by "ross 708" must not
	// be re-matched by the bare "ross" alias.
	for _, entry := range x.breeds {
		pos := findWholePhraseAvoiding(normalized, entry.alias, consumed)
		if pos < 0 || seen[entry.canonical] {
			continue
		}
		seen[entry.canonical] = true
		consumed = append(consumed, [2]int{pos, pos + len(entry.alias)})
		conf := confUnambiguous
		if !strings.ContainsAny(entry.alias, "0123456789") && !strings.Contains(entry.alias, " ") {
			conf = confFuzzy
		}
		mentions = append(mentions, mention{pos: pos, canonical: entry.canonical, alias: entry.alias, conf: conf})
	}

	// Order mentions as they appear in the query; the first is the primary.
	for i := 1; i < len(mentions); i++ {
		for j := i; j > 0 && mentions[j].pos < mentions[j-1].pos; j-- {
			mentions[j], mentions[j-1] = mentions[j-1], mentions[j]
		}
	}

	for _, m := range mentions {
		out.BreedMentions = append(out.BreedMentions, m.canonical)
	}
	if len(mentions) > 0 {
		out.Breed = mentions[0].canonical
		out.BreedAlias = mentions[0].alias
		out.Confidence[FieldBreed] = mentions[0].conf
	}
}

func (x *Extractor) extractProduct(normalized string, out *ExtractedEntities) {
	for _, entry := range x.products {
		if findWholePhrase(normalized, entry.alias) >= 0 {
			out.ProductID = entry.productID
			out.Confidence[FieldProduct] = confUnambiguous
			return
		}
	}
}

func (x *Extractor) extractMetric(normalized string, out *ExtractedEntities) {
	for _, entry := range x.metrics {
		if findWholePhrase(normalized, entry.alias) >= 0 {
			out.Metric = entry.metric
			out.Confidence[FieldMetric] = confUnambiguous
			return
		}
	}
}

func (x *Extractor) extractSexes(normalized string, out *ExtractedEntities) {
	type mention struct {
		pos int
		sex Sex
	}
	var mentions []mention
	seen := make(map[Sex]bool)

	for _, entry := range x.sexes {
		pos := findWholePhrase(normalized, entry.alias)
		if pos < 0 || seen[entry.sex] {
			continue
		}
		seen[entry.sex] = true
		mentions = append(mentions, mention{pos: pos, sex: entry.sex})
	}

	for i := 1; i < len(mentions); i++ {
		for j := i; j > 0 && mentions[j].pos < mentions[j-1].pos; j-- {
			mentions[j], mentions[j-1] = mentions[j-1], mentions[j]
		}
	}

	for _, m := range mentions {
		out.SexMentions = append(out.SexMentions, m.sex)
	}
	if len(mentions) > 0 {
		out.Sex = mentions[0].sex
		out.Confidence[FieldSex] = confUnambiguous
	}
}

func (x *Extractor) extractAges(normalized string, out *ExtractedEntities) {
	// Track the spans already consumed so "between 14 and 21 days" does not
	// also yield a point age, and "3 weeks" does not re-match as a day count.
	var consumed [][2]int
	overlaps := func(lo, hi int) bool {
		for _, c := range consumed {
			if lo < c[1] && hi > c[0] {
				return true
			}
		}
		return false
	}

	for _, m := range ageRangeRe.FindAllStringSubmatchIndex(normalized, -1) {
		lo, _ := strconv.Atoi(normalized[m[2]:m[3]])
		hi, _ := strconv.Atoi(normalized[m[4]:m[5]])
		if lo > hi {
			lo, hi = hi, lo
		}
		out.AgeMentions = append(out.AgeMentions, AgeRange{Min: lo, Max: hi})
		consumed = append(consumed, [2]int{m[0], m[1]})
	}

	for _, m := range ageWeeksRe.FindAllStringSubmatchIndex(normalized, -1) {
		if overlaps(m[0], m[1]) || digitFollows(normalized, m[1]) {
			continue
		}
		weeks, _ := strconv.Atoi(normalized[m[2]:m[3]])
		days := weeks * 7
		out.AgeMentions = append(out.AgeMentions, AgeRange{Min: days, Max: days})
		consumed = append(consumed, [2]int{m[0], m[1]})
	}

	for _, m := range ageDaysRe.FindAllStringSubmatchIndex(normalized, -1) {
		if overlaps(m[0], m[1]) || digitFollows(normalized, m[1]) {
			continue
		}
		days, _ := strconv.Atoi(normalized[m[2]:m[3]])
		out.AgeMentions = append(out.AgeMentions, AgeRange{Min: days, Max: days})
		consumed = append(consumed, [2]int{m[0], m[1]})
	}

	// "day 21" / "j21" style only when nothing matched yet; the bare "d"/"j"
	// forms are too ambiguous to trust alongside other matches.
	if len(out.AgeMentions) == 0 {
		for _, m := range dayOfAgeRe.FindAllStringSubmatchIndex(normalized, -1) {
			days, _ := strconv.Atoi(normalized[m[2]:m[3]])
			if days == 0 || days > 150 {
				continue
			}
			out.AgeMentions = append(out.AgeMentions, AgeRange{Min: days, Max: days})
		}
	}

	out.AgeMentions = dedupeAges(out.AgeMentions)
	if len(out.AgeMentions) > 0 {
		age := out.AgeMentions[0]
		out.Age = &age
		out.Confidence[FieldAge] = confUnambiguous
	}
}

func (x *Extractor) extractMarkers(normalized string, out *ExtractedEntities) {
	for _, marker := range comparisonMarkers {
		if findWholePhrase(normalized, marker) >= 0 {
			out.ComparisonMarkers = append(out.ComparisonMarkers, marker)
		}
	}
}

func dedupeAges(ages []AgeRange) []AgeRange {
	var out []AgeRange
	for _, a := range ages {
		dup := false
		for _, b := range out {
			if a == b {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	return out
}

// digitFollows reports whether the text after position i resumes with a
// number, as in "dia 21" where "500 dia" must not be read as an age.
func digitFollows(text string, i int) bool {
	for i < len(text) && text[i] == ' ' {
		i++
	}
	return i < len(text) && text[i] >= '0' && text[i] <= '9'
}

// findWholePhrase returns the index of phrase in text when it appears on word
// boundaries, or -1.
func findWholePhrase(text, phrase string) int {
	return findWholePhraseAvoiding(text, phrase, nil)
}

// findWholePhraseAvoiding is findWholePhrase restricted to occurrences that do
// not overlap any consumed span.
func findWholePhraseAvoiding(text, phrase string, consumed [][2]int) int {
	if phrase == "" {
		return -1
	}
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return -1
		}
		idx += start
		if boundaryAt(text, idx) && boundaryAt(text, idx+len(phrase)) && !overlapsAny(idx, idx+len(phrase), consumed) {
			return idx
		}
		start = idx + 1
	}
}

func overlapsAny(lo, hi int, spans [][2]int) bool {
	for _, s := range spans {
		if lo < s[1] && hi > s[0] {
			return true
		}
	}
	return false
}

// boundaryAt reports whether position i in text sits on a word boundary.
func boundaryAt(text string, i int) bool {
	if i <= 0 || i >= len(text) {
		return true
	}
	prev := rune(text[i-1])
	cur := rune(text[i])
	return !isWordRune(prev) || !isWordRune(cur)
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
