package router

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Weights of the heuristic signals. An input is hard when its score reaches
// the configured threshold.
const (
	weightLong        = 2
	weightSubjects    = 2
	weightDeadlines   = 1
	weightSpan        = 1
	weightConstraints = 1

	DefaultThreshold = 2
	longInputRunes   = 1500
	manySubjects     = 3
	manyDeadlines    = 2
	longSpan         = 14 * 24 * time.Hour
	// maxSpanUnits caps "N tuần/tháng" so huge N cannot overflow the span.
	maxSpanUnits = 520
)

// subjectTerms maps spellings to one canonical subject so that "Toán" and
// "math" count once.
var subjectTerms = map[string]string{
	"toán": "math", "giải tích": "math", "đại số": "math", "math": "math", "calculus": "math", "algebra": "math",
	"vật lý": "physics", "vật lí": "physics", "physics": "physics",
	"hoá": "chemistry", "hóa": "chemistry", "chemistry": "chemistry",
	"sinh học": "biology", "biology": "biology",
	"ngữ văn": "literature", "văn học": "literature", "literature": "literature",
	"tiếng anh": "english", "english": "english", "ielts": "english", "toeic": "english",
	"lịch sử": "history", "history": "history",
	"địa lý": "geography", "địa lí": "geography", "geography": "geography",
	"tin học": "cs", "lập trình": "cs", "programming": "cs", "computer science": "cs",
	"kinh tế": "economics", "economics": "economics", "kế toán": "accounting", "accounting": "accounting",
	"triết": "philosophy", "philosophy": "philosophy",
	"xác suất": "statistics", "thống kê": "statistics", "statistics": "statistics",
	"cơ sở dữ liệu": "databases", "database": "databases",
	"mạng máy tính": "networks", "networking": "networks",
}

var deadlineTerms = []string{
	"kiểm tra", "thi", "cuối kỳ", "giữa kỳ", "hạn nộp", "deadline", "nộp bài",
	"exam", "midterm", "final", "quiz", "due", "submission", "bảo vệ", "thuyết trình",
}

var constraintTerms = []string{
	"đi làm", "làm thêm", "part-time", "part time", "ca làm", "work shift",
	"sức khỏe", "sức khoẻ", "ốm", "bệnh", "health", "sick",
	"chỉ rảnh", "only free", "bận", "busy", "đi xa", "travel",
}

var (
	isoDate  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dmyDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	spanWord = regexp.MustCompile(`(\d+)\s*(tuần|tháng|weeks?|months?)`)
)

// Signals are the measured features of one input.
type Signals struct {
	Runes       int
	Subjects    []string
	Deadlines   int
	Span        time.Duration
	Constraints bool
}

// Score is the weighted sum of the signals.
func (s Signals) Score() int {
	score := 0
	if s.Runes > longInputRunes {
		score += weightLong
	}
	if len(s.Subjects) >= manySubjects {
		score += weightSubjects
	}
	if s.Deadlines >= manyDeadlines {
		score += weightDeadlines
	}
	if s.Span > longSpan {
		score += weightSpan
	}
	if s.Constraints {
		score += weightConstraints
	}
	return score
}

// Reasoning renders the signals as a short Vietnamese justification.
func (s Signals) Reasoning(threshold int) string {
	return fmt.Sprintf("điểm %d/%d: %d ký tự, %d môn, %d mốc hạn, khoảng %d ngày, ràng buộc đặc biệt: %t",
		s.Score(), threshold, s.Runes, len(s.Subjects), s.Deadlines, int(s.Span.Hours()/24), s.Constraints)
}

// Measure extracts heuristic signals from input. The year of day/month dates
// without one is taken from now.
func Measure(input string, now time.Time) Signals {
	lower := strings.ToLower(input)
	sig := Signals{Runes: utf8.RuneCountInString(input)}

	seen := map[string]bool{}
	for term, canon := range subjectTerms {
		if containsWord(lower, term) && !seen[canon] {
			seen[canon] = true
			sig.Subjects = append(sig.Subjects, canon)
		}
	}
	sort.Strings(sig.Subjects)

	for _, term := range deadlineTerms {
		sig.Deadlines += countWords(lower, term)
	}

	for _, term := range constraintTerms {
		if containsWord(lower, term) {
			sig.Constraints = true
			break
		}
	}

	sig.Span = dateSpan(lower, now)
	return sig
}

// containsWord matches term at word boundaries. Vietnamese letters are not
// \w in RE2, so boundaries are checked by hand.
func containsWord(s, term string) bool {
	_, ok := nextWord(s, term, 0)
	return ok
}

// countWords counts the non-overlapping occurrences of term at word
// boundaries, so "final" does not match inside "finally".
func countWords(s, term string) int {
	n := 0
	for i := 0; ; n++ {
		end, ok := nextWord(s, term, i)
		if !ok {
			return n
		}
		i = end
	}
}

// nextWord finds term at word boundaries in s[from:] and returns the index
// just past it.
func nextWord(s, term string, from int) (int, bool) {
	for i := from; i <= len(s); {
		j := strings.Index(s[i:], term)
		if j < 0 {
			return 0, false
		}
		start := i + j
		end := start + len(term)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return end, true
		}
		i = start + 1
	}
	return 0, false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isLetter(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isLetter(r)
}

func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func dateSpan(s string, now time.Time) time.Duration {
	var dates []time.Time
	for _, m := range isoDate.FindAllStringSubmatch(s, -1) {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			dates = append(dates, t)
		}
	}
	for _, m := range dmyDate.FindAllStringSubmatch(s, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day {
			continue
		}
		dates = append(dates, t)
	}

	var span time.Duration
	if len(dates) > 1 {
		lo, hi := dates[0], dates[0]
		for _, d := range dates[1:] {
			if d.Before(lo) {
				lo = d
			}
			if d.After(hi) {
				hi = d
			}
		}
		span = hi.Sub(lo)
	}

	for _, m := range spanWord.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxSpanUnits {
			n = maxSpanUnits
		}
		var d time.Duration
		if strings.HasPrefix(m[2], "tuần") || strings.HasPrefix(m[2], "week") {
			d = time.Duration(n) * 7 * 24 * time.Hour
		} else {
			d = time.Duration(n) * 30 * 24 * time.Hour
		}
		if d > span {
			span = d
		}
	}
	return span
}
