package interaction

import (
	"regexp"
	"strings"
	"unicode"
)

// topicRules maps each topic to the keywords (Hebrew and English) that select
// it. A question can match several topics; topicPriority breaks the tie.
var topicRules = map[string][]string{
	"Kashrut":          {"בשר", "חלב", "כשר", "meat", "dairy", "kosher", "טרף", "שחיטה"},
	"Military & Draft": {"צבא", "גיוס", "חרדי", "army", "military", "draft", "haredi", "ultra-orthodox", "yeshiva", "ישיבות", "חיילות", "soldiers", "חייל"},
	"Theology":         {"אלוהים", "אלהים", "god", "השגחה", "שכינה", "divine", "creator", "נשמה", "soul", "miracle", "נס"},
	"Torah & Text":     {"פרשת", "תורה", "torah", "parsha", "בראשית", "ספר", "פסוק", "verse", "scripture", "תלמוד", "talmud", "גמרא"},
	"Jewish Law":       {"הלכה", "halacha", "mitzvah", "מצוו", "נדר", "shabbat", "שבת", "נביא", "צדיק", "משיח", "תשובה"},
	"Philosophy":       {"חכמה", "wisdom", "מוסר", "ethics", "virtue", "truth", "אמת", "tolerance", "סובלנות", "justice", "צדק", "meaning of life"},
	"Interfaith":       {"נצרות", "christian", "islam", "מוסלמ", "ישו", "jesus", "church", "כנסייה", "mosque", "מסגד", "עבודה זרה", "idolatry"},
	"Personal Life":    {"ילד", "child", "education", "חינוך", "medicine", "רפואה", "doctor", "family", "משפחה", "advice", "anger", "כעס"},
	"History":          {"egypt", "מצרים", "spain", "ספרד", "where did you live", "ארץ ישראל", "holocaust", "born", "נולד"},
	"Relationships":    {"אהבה", "זוגיות", "love", "marriage", "נישואין", "couple"},
	"Meta":             {"מוזיאון", "museum", "הולוגרמ", "hologram", "robot", "ai", "artificial intelligence", "בינה מלאכותית", "technology", "טכנולוגיה"},
	"Blessings":        {"ברכ", "bless", "תברך", "prayer", "תפילה"},
	"Daily Life":       {"קפה", "coffee", "sleep", "שנת", "רחץ", "wash", "tea", "walk", "הליכ", "breakfast", "morning routine"},
	"Greetings":        {"בוקר טוב", "good morning", "שלום", "hello", "thank you", "תודה", "bye", "להתראות"},
}

// topicPriority orders topics from most to least specific.
var topicPriority = []string{
	"Kashrut", "Military & Draft", "Interfaith", "Theology", "Torah & Text",
	"Jewish Law", "Philosophy", "Personal Life", "History", "Relationships",
	"Meta", "Blessings", "Daily Life", "Greetings",
}

var sensitivityByTopic = map[string]string{
	"Military & Draft": SensitivityHigh,
	"Interfaith":       SensitivityCritical,
	"Kashrut":          SensitivityMedium,
	"Theology":         SensitivityMedium,
	"Jewish Law":       SensitivityMedium,
}

// criticalKeywords escalate any question to critical sensitivity regardless
// of topic.
var criticalKeywords = []string{
	"עבודה זרה", "idolatry", "נצרות", "ישו", "jesus",
	"נתניהו", "netanyahu", "bibi", "ביבי", "government", "ממשלה",
}

var greetingPatterns = []string{
	"שלום", "היי", "הי ", "בוקר טוב", "ערב טוב", "מה שלומך", "מה נשמע",
	"hello", "hi ", "hey", "good morning", "good evening", "how are you",
	"תודה", "thank", "bye", "להתראות", "שלום רב",
}

var fallbackPatterns = []string{
	"please rephrase", "לא הבנתי", "אנא נסח", "could you repeat", "i didn't understand",
}

var vipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:אני|שמי|קוראים לי)\s+(.+?)(?:\s*[,.]|$)`),
	regexp.MustCompile(`(?i)(?:my name is|i'm|i am)\s+(.+?)(?:\s*[,.]|$)`),
	regexp.MustCompile(`(?i)(?:פרופסור|דוקטור|professor|doctor|dr\.?)\s+(\S+)`),
}

// DetectLanguage classifies text by script ratio: Hebrew, Latin, Cyrillic or
// Arabic characters dominate, or "unknown".
func DetectLanguage(text string) string {
	var hebrew, latin, cyrillic, arabic int
	for _, r := range text {
		switch {
		case r >= 0x0590 && r <= 0x05FF:
			hebrew++
		case unicode.In(r, unicode.Latin):
			latin++
		case r >= 0x0400 && r <= 0x04FF:
			cyrillic++
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		}
	}
	total := hebrew + latin + cyrillic + arabic
	if total == 0 {
		return "unknown"
	}
	switch {
	case float64(hebrew)/float64(total) > 0.4:
		return "he"
	case float64(latin)/float64(total) > 0.4:
		return "en"
	case float64(cyrillic)/float64(total) > 0.2:
		return "ru"
	case float64(arabic)/float64(total) > 0.2:
		return "ar"
	}
	return "unknown"
}

// asciiWordKeywords holds word-boundary matchers for Latin-script keywords,
// so "ai" does not fire inside "explain". Hebrew keywords stay substring
// matches — Hebrew prefixes attach directly to the word.
var asciiWordKeywords = buildKeywordMatchers()

func buildKeywordMatchers() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, keywords := range topicRules {
		for _, kw := range keywords {
			if _, ok := m[kw]; ok || !isASCII(kw) {
				continue
			}
			m[kw] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return m
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func matchKeyword(lowerQuestion, question, kw string) bool {
	if re, ok := asciiWordKeywords[kw]; ok {
		return re.MatchString(question)
	}
	return strings.Contains(lowerQuestion, strings.ToLower(kw))
}

// ClassifyTopic picks the highest-priority topic whose keywords appear in
// the question. Short unmatched questions are treated as greetings.
func ClassifyTopic(question string) string {
	q := strings.ToLower(question)
	matched := make(map[string]bool, 2)
	for topic, keywords := range topicRules {
		for _, kw := range keywords {
			if matchKeyword(q, question, kw) {
				matched[topic] = true
				break
			}
		}
	}
	if len(matched) == 0 {
		if len(strings.TrimSpace(question)) < 15 {
			return "Greetings"
		}
		return "General"
	}
	for _, topic := range topicPriority {
		if matched[topic] {
			return topic
		}
	}
	return "General"
}

// RateSensitivity returns the sensitivity level for a question, escalating
// to critical when a critical keyword appears.
func RateSensitivity(topic, question string) string {
	q := strings.ToLower(question)
	for _, kw := range criticalKeywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			return SensitivityCritical
		}
	}
	if s, ok := sensitivityByTopic[topic]; ok {
		return s
	}
	return SensitivityLow
}

// IsGreeting reports whether the text is a greeting or farewell rather than
// a real question.
func IsGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range greetingPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return len(strings.TrimSpace(text)) < 15
}

// IsComprehensionFailure reports whether the answer is a rephrase request.
func IsComprehensionFailure(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range fallbackPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DetectVIP extracts a self-introduced visitor name, or "".
func DetectVIP(question string) string {
	for _, pat := range vipPatterns {
		if m := pat.FindStringSubmatch(question); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// DetectThankYou classifies a thank-you. Only the English phrase is the kiosk
// kill switch; the Hebrew תודה is politeness and must never be treated as a
// stop. The two have opposite operational meaning.
func DetectThankYou(question string) (interrupt bool, typ string) {
	lower := strings.ToLower(question)
	if strings.Contains(lower, "thank you") || strings.Contains(lower, "thanks") {
		return true, ThankYouStop
	}
	if strings.Contains(question, "תודה") {
		return false, ThankYouPolite
	}
	return false, ""
}
