// Package extract derives structured signals (skills, titles, years of
// experience) from raw resume or job-description text. Extraction is
// deterministic and total: malformed or empty input degrades to empty sets
// and zero, never an error, so downstream scoring always has something to
// work with.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"resume-match-go/internal/types"
)

// maxPlausibleYears is the sanity ceiling for years-of-experience signals.
// Anything above it is treated as noise (page numbers, zip codes, years
// misread as durations) and discarded.
const maxPlausibleYears = 50

var (
	explicitYearsRe = regexp.MustCompile(`(\d+)\s*\+?\s*(?:years?|yrs?)\b`)
	dateRangeRe     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\s*(?:-|–|—|~|to|until)\s*(19\d{2}|20\d{2}|present|current|now|today)\b`)
)

// Extractor maps raw text to Fields. It is stateless and safe for
// concurrent use.
type Extractor struct {
	skills   []string
	titles   []string
	yearsNow int
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCurrentYear pins the year used to close open-ended date ranges
// ("2019 - present"). Defaults to the wall-clock year.
func WithCurrentYear(year int) Option {
	return func(e *Extractor) {
		e.yearsNow = year
	}
}

// WithSkillVocabulary replaces the built-in skill vocabulary.
func WithSkillVocabulary(skills []string) Option {
	return func(e *Extractor) {
		e.skills = skills
	}
}

// WithTitleVocabulary replaces the built-in title vocabulary.
func WithTitleVocabulary(titles []string) Option {
	return func(e *Extractor) {
		e.titles = titles
	}
}

// NewExtractor builds an Extractor with the curated default vocabularies.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		skills:   skillBank,
		titles:   titleBank,
		yearsNow: time.Now().Year(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces all structured fields for one document.
func (e *Extractor) Extract(text string) types.Fields {
	low := strings.ToLower(text)
	return types.Fields{
		Skills:          e.matchVocabulary(low, e.skills),
		Titles:          e.matchVocabulary(low, e.titles),
		YearsExperience: e.extractYears(low),
	}
}

// matchVocabulary returns the sorted, deduplicated set of vocabulary terms
// that occur in low as whole words or whole phrases.
func (e *Extractor) matchVocabulary(low string, vocab []string) []string {
	var found []string
	seen := make(map[string]struct{})
	for _, term := range vocab {
		if _, dup := seen[term]; dup {
			continue
		}
		if containsWholePhrase(low, term) {
			seen[term] = struct{}{}
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}

// containsWholePhrase reports whether term occurs in low with non-word
// characters (or string edges) on both sides. "go" does not match inside
// "django"; "ci/cd" matches as the whole token.
func containsWholePhrase(low, term string) bool {
	for start := 0; ; {
		idx := strings.Index(low[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)

		leftOK := idx == 0 || !isWordByte(low, idx-1)
		rightOK := end == len(low) || !isWordByte(low, end)
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
		if start >= len(low) {
			return false
		}
	}
}

// isWordByte reports whether the byte at i begins an alphanumeric rune.
// Vocabulary terms are ASCII, so byte-level boundaries are sufficient; any
// multi-byte rune is treated as a word character to stay conservative.
func isWordByte(s string, i int) bool {
	b := s[i]
	if b < 0x80 {
		return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
	}
	return true
}

// extractYears finds the years-of-experience signal. Policy, in order:
//  1. The largest explicit "N years" mention wins.
//  2. Otherwise, the sum of merged non-overlapping date ranges.
// Values above the sanity ceiling are discarded; no signal yields 0.
func (e *Extractor) extractYears(low string) float64 {
	if best := e.largestExplicitMention(low); best > 0 {
		return best
	}
	return e.sumDateRanges(low)
}

func (e *Extractor) largestExplicitMention(low string) float64 {
	best := 0
	for _, m := range explicitYearsRe.FindAllStringSubmatch(low, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxPlausibleYears {
			continue
		}
		if n > best {
			best = n
		}
	}
	return float64(best)
}

type yearRange struct {
	start, end int
}

func (e *Extractor) sumDateRanges(low string) float64 {
	var ranges []yearRange
	for _, m := range dateRangeRe.FindAllStringSubmatch(low, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end := e.yearsNow
		if n, err := strconv.Atoi(m[2]); err == nil {
			end = n
		}
		if end < start || end-start > maxPlausibleYears {
			continue
		}
		ranges = append(ranges, yearRange{start: start, end: end})
	}
	if len(ranges) == 0 {
		return 0
	}

	// Merge overlapping ranges so concurrent positions are not double
	// counted.
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start != ranges[j].start {
			return ranges[i].start < ranges[j].start
		}
		return ranges[i].end < ranges[j].end
	})
	merged := []yearRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}

	total := 0
	for _, r := range merged {
		total += r.end - r.start
	}
	if total > maxPlausibleYears {
		total = maxPlausibleYears
	}
	return float64(total)
}
