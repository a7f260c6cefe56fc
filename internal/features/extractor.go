// Package features computes the offline feature vectors consumed by the
// recall and precision classifiers. Extraction is pure and deterministic:
// identical paper batches always produce byte-identical feature matrices,
// and missing or malformed metadata degrades to NaN/zero/empty sentinels
// instead of failing the batch.
package features

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/helixir/citation-ranker/internal/domain"
)

var (
	wordRE      = regexp.MustCompile(`[A-Za-z0-9]+(?:'[A-Za-z0-9]+)?`)
	sentSplitRE = regexp.MustCompile(`[.!?]+\s+`)
	urlRE       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRE     = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
)

// keywordPattern pairs a feature column with its case-insensitive pattern,
// matched against the concatenated lowercase title and abstract.
type keywordPattern struct {
	name string
	re   *regexp.Regexp
}

// keywordPatterns are the trained keyword flag columns. Order here fixes the
// column order reported by FeatureNames.
var keywordPatterns = []keywordPattern{
	{"is_survey", regexp.MustCompile(`\bsurvey\b|\breview\b`)},
	{"is_benchmark_paper", regexp.MustCompile(`\bbenchmark\b|\bleaderboard\b`)},
	{"is_dataset_paper", regexp.MustCompile(`\bdataset\b|\bcorpus\b`)},
	{"is_system_paper", regexp.MustCompile(`\bsystem\b|\bframework\b|\bplatform\b`)},
	{"has_theory", regexp.MustCompile(`\btheorem\b|\bproof\b|\bconvergence\b`)},
	{"mentions_llm", regexp.MustCompile(`\bllm\b|large language model|language model`)},
	{"mentions_diffusion", regexp.MustCompile(`\bdiffusion\b`)},
	{"mentions_transformer", regexp.MustCompile(`\btransformer\b`)},
	{"mentions_agent", regexp.MustCompile(`\bagent\b|\btool\b|\bplanning\b`)},
	{"mentions_rl", regexp.MustCompile(`\breinforcement learning\b|\brl\b`)},
	{"mentions_multimodal", regexp.MustCompile(`\bmultimodal\b|vision-language|vlm`)},
	{"claims_sota", regexp.MustCompile(`\bsota\b|state[- ]of[- ]the[- ]art`)},
	{"claims_novel", regexp.MustCompile(`\bnovel\b|\bnew\b|\bfirst\b|\bintroduce\b`)},
	{"mentions_open_source", regexp.MustCompile(`open[- ]source|we release|code is available`)},
	{"mentions_experiments", regexp.MustCompile(`\bexperiments?\b|\bwe evaluate\b|\bresults?\b`)},
}

// abstractSubstrings are simple substring flags evaluated over the lowercase
// abstract only.
var abstractSubstrings = []struct {
	name   string
	needle string
}{
	{"mentions_github", "github.com"},
	{"mentions_code", "code"},
	{"mentions_dataset", "dataset"},
	{"mentions_benchmark", "benchmark"},
	{"mentions_arxiv_id", "arxiv"},
	{"mentions_doi", "doi"},
}

// featureNames is the fixed column set the classifiers were trained against.
var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{
		"pub_hour_utc", "pub_dow", "pub_month", "is_weekend",
		"num_categories", "is_cross_listed",
		"has_cs", "has_stat", "has_math", "has_eess", "has_qbio",
		"primary_is_cs", "primary_is_stat",
		"num_authors_offline", "author_name_len_mean", "author_name_len_max",
		"has_many_authors_ge5", "has_many_authors_ge10",
		"title_char_len", "abstract_char_len",
		"title_word_count", "abstract_word_count",
		"title_avg_word_len", "abstract_avg_word_len",
		"abstract_sentence_count", "abstract_avg_words_per_sentence",
		"title_digit_ratio", "abstract_digit_ratio",
		"title_punct_ratio", "abstract_punct_ratio",
		"abstract_has_url", "abstract_has_email",
	}
	for _, s := range abstractSubstrings {
		names = append(names, s.name)
	}
	for _, p := range keywordPatterns {
		names = append(names, p.name)
	}
	names = append(names, "abstract_ttr", "log_abstract_word_count", "log_num_authors")
	return names
}

// FeatureNames returns the fixed numeric feature column order. Callers must
// not mutate the returned slice.
func FeatureNames() []string {
	return featureNames
}

// FeatureVector is the derived representation of one paper: a numeric map
// keyed by the fixed feature names (NaN marks missing values) plus the raw
// primary category for downstream one-hot encoding.
type FeatureVector struct {
	Numeric         map[string]float64
	PrimaryCategory string
}

// Extract computes one FeatureVector per record. It never fails: absent
// fields produce sentinel values so the batch always yields a full matrix.
func Extract(batch []domain.PaperRecord) []FeatureVector {
	out := make([]FeatureVector, len(batch))
	for i := range batch {
		out[i] = extractOne(&batch[i])
	}
	return out
}

func extractOne(p *domain.PaperRecord) FeatureVector {
	f := FeatureVector{
		Numeric:         make(map[string]float64, len(featureNames)),
		PrimaryCategory: strings.TrimSpace(p.PrimaryCategory),
	}

	temporalFeatures(f.Numeric, p.PublishedAt)
	categoryFeatures(f.Numeric, p.PrimaryCategory, p.Categories)
	authorFeatures(f.Numeric, p.AuthorNames())
	textFeatures(f.Numeric, p.Title, p.Abstract)

	return f
}

func temporalFeatures(m map[string]float64, publishedAt *time.Time) {
	if publishedAt == nil {
		m["pub_hour_utc"] = math.NaN()
		m["pub_dow"] = math.NaN()
		m["pub_month"] = math.NaN()
		m["is_weekend"] = math.NaN()
		return
	}

	utc := publishedAt.UTC()
	// Day of week with Monday=0, matching the trained feature encoding.
	dow := (int(utc.Weekday()) + 6) % 7

	m["pub_hour_utc"] = float64(utc.Hour())
	m["pub_dow"] = float64(dow)
	m["pub_month"] = float64(int(utc.Month()))
	m["is_weekend"] = boolFeature(dow >= 5)
}

func categoryFeatures(m map[string]float64, primary string, all []string) {
	cats := make([]string, 0, len(all))
	for _, c := range all {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}

	hasPrefix := func(prefix string) float64 {
		for _, c := range cats {
			if strings.HasPrefix(c, prefix) {
				return 1
			}
		}
		return 0
	}

	m["num_categories"] = float64(len(cats))
	m["is_cross_listed"] = boolFeature(len(cats) > 1)
	m["has_cs"] = hasPrefix("cs.")
	m["has_stat"] = hasPrefix("stat.")
	m["has_math"] = hasPrefix("math.")
	m["has_eess"] = hasPrefix("eess.")
	m["has_qbio"] = hasPrefix("q-bio.")

	primary = strings.TrimSpace(primary)
	m["primary_is_cs"] = boolFeature(strings.HasPrefix(primary, "cs."))
	m["primary_is_stat"] = boolFeature(strings.HasPrefix(primary, "stat."))
}

func authorFeatures(m map[string]float64, names []string) {
	n := len(names)
	m["num_authors_offline"] = float64(n)
	m["has_many_authors_ge5"] = boolFeature(n >= 5)
	m["has_many_authors_ge10"] = boolFeature(n >= 10)
	m["log_num_authors"] = math.Log1p(float64(n))

	if n == 0 {
		m["author_name_len_mean"] = math.NaN()
		m["author_name_len_max"] = math.NaN()
		return
	}

	sum, max := 0, 0
	for _, name := range names {
		l := utf8.RuneCountInString(name)
		sum += l
		if l > max {
			max = l
		}
	}
	m["author_name_len_mean"] = float64(sum) / float64(n)
	m["author_name_len_max"] = float64(max)
}

func textFeatures(m map[string]float64, title, abstract string) {
	titleLower := strings.ToLower(title)
	absLower := strings.ToLower(abstract)

	titleWords := wordRE.FindAllString(title, -1)
	absWords := wordRE.FindAllString(abstract, -1)

	m["title_char_len"] = float64(utf8.RuneCountInString(title))
	m["abstract_char_len"] = float64(utf8.RuneCountInString(abstract))
	m["title_word_count"] = float64(len(titleWords))
	m["abstract_word_count"] = float64(len(absWords))
	m["title_avg_word_len"] = avgWordLen(titleWords)
	m["abstract_avg_word_len"] = avgWordLen(absWords)

	sentences := sentenceCount(abstract)
	m["abstract_sentence_count"] = float64(sentences)
	if sentences == 0 {
		m["abstract_avg_words_per_sentence"] = math.NaN()
	} else {
		m["abstract_avg_words_per_sentence"] = float64(len(absWords)) / float64(sentences)
	}

	m["title_digit_ratio"] = charRatio(title, isDigit)
	m["abstract_digit_ratio"] = charRatio(abstract, isDigit)
	m["title_punct_ratio"] = charRatio(title, isPunct)
	m["abstract_punct_ratio"] = charRatio(abstract, isPunct)

	m["abstract_has_url"] = boolFeature(urlRE.MatchString(abstract))
	m["abstract_has_email"] = boolFeature(emailRE.MatchString(abstract))

	for _, s := range abstractSubstrings {
		m[s.name] = boolFeature(strings.Contains(absLower, s.needle))
	}

	combined := titleLower + " " + absLower
	for _, p := range keywordPatterns {
		m[p.name] = boolFeature(p.re.MatchString(combined))
	}

	m["abstract_ttr"] = typeTokenRatio(absWords)
	m["log_abstract_word_count"] = math.Log1p(float64(len(absWords)))
}

// sentenceCount splits on terminal punctuation followed by whitespace.
// Non-empty text always counts as at least one sentence.
func sentenceCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n := len(sentSplitRE.Split(s, -1))
	if n < 1 {
		n = 1
	}
	return n
}

func avgWordLen(words []string) float64 {
	if len(words) == 0 {
		return math.NaN()
	}
	sum := 0
	for _, w := range words {
		sum += utf8.RuneCountInString(w)
	}
	return float64(sum) / float64(len(words))
}

// typeTokenRatio is distinct lowercase words over total words, a crude
// lexical diversity measure.
func typeTokenRatio(words []string) float64 {
	if len(words) == 0 {
		return math.NaN()
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.ToLower(w)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

// charRatio returns the fraction of runes matching pred, with a floor of one
// on the denominator so empty strings yield 0.
func charRatio(s string, pred func(rune) bool) float64 {
	if s == "" {
		return 0
	}
	matched, total := 0, 0
	for _, r := range s {
		total++
		if pred(r) {
			matched++
		}
	}
	if total < 1 {
		total = 1
	}
	return float64(matched) / float64(total)
}

func isDigit(r rune) bool {
	return unicode.IsDigit(r)
}

// isPunct matches anything outside word characters and whitespace.
func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.IsSpace(r)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
