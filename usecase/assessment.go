package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// correctionEntry maps a common grammar mistake to its corrected phrase
type correctionEntry struct {
	Mistake    string
	Correction string
}

// grammarCorrections is checked in order; the first substring hit wins.
var grammarCorrections = []correctionEntry{
	{"i am agree", "I agree"},
	{"he don't", "he doesn't"},
	{"she don't", "she doesn't"},
	{"it don't", "it doesn't"},
	{"i didn't went", "I didn't go"},
	{"i didn't knew", "I didn't know"},
	{"i am boring", "I am bored"},
	{"i am interesting in", "I am interested in"},
	{"more better", "better"},
	{"more easier", "easier"},
	{"most best", "best"},
	{"peoples", "people"},
	{"childrens", "children"},
	{"i have 20 years", "I am 20 years old"},
	{"i am here since", "I have been here since"},
	{"yesterday i go", "yesterday I went"},
	{"i am living here since", "I have been living here since"},
}

// Agreement rules applied when no table entry matches. The first catches a
// plural-type subject paired with the third-person-singular verb form, the
// second a singular subject paired with the base form.
var (
	pluralSubjectWithSForm = regexp.MustCompile(
		`\b(i|you|we|they)\s+(goes|does|has|says|gets|makes|knows|thinks|takes|sees|comes|wants|looks|uses|finds|gives|tells|works|plays|eats|likes|needs|feels|lives|studies|watches)\b`)
	singularSubjectWithBaseForm = regexp.MustCompile(
		`\b(he|she|it)\s+(go|do|have|say|get|make|know|think|take|see|come|want|look|use|find|give|tell|work|play|eat|like|need|feel|live|study|watch)\b`)
)

const (
	adviceBaseForm = `With "I", "you", "we" and "they", use the base form of the verb, for example "they go" instead of "they goes".`
	adviceSForm    = `With "he", "she" and "it", add -s or -es to the verb, for example "he goes" instead of "he go".`
)

// challengingSounds are substrings English learners commonly struggle with
var challengingSounds = []string{"th", "r", "l", "v", "w"}

// Default enrichments used when the pipeline faults; the message is still
// recorded.
const (
	defaultScore    = 70
	defaultFeedback = "Good effort! Keep practicing to make your speech even clearer."
)

// Assessment bundles the enrichments attached to a user message
type Assessment struct {
	Correction *string
	Score      int
	Feedback   string
}

// AssessmentService runs the rule-based language assessment pipeline.
// Same text always yields the same correction, score and feedback.
type AssessmentService struct {
	logger *zap.Logger
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(logger *zap.Logger) *AssessmentService {
	return &AssessmentService{logger: logger}
}

// Assess runs correction, scoring and feedback for one utterance. A panic
// anywhere in the pipeline degrades to the documented defaults instead of
// aborting the turn.
func (s *AssessmentService) Assess(text string) (result Assessment) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Assessment pipeline fault, using defaults",
				zap.Any("panic", r),
				zap.String("text", text))
			result = Assessment{Score: defaultScore, Feedback: defaultFeedback}
		}
	}()

	assessment := Assessment{}
	if suggestion, ok := s.Correct(text); ok {
		assessment.Correction = &suggestion
	}
	assessment.Score = s.Score(text)
	assessment.Feedback = s.Feedback(assessment.Score)
	return assessment
}

// Correct matches the utterance against the grammar-correction table and,
// failing that, the two subject-verb agreement rules. Returns false when
// nothing matches.
func (s *AssessmentService) Correct(text string) (string, bool) {
	lowered := strings.ToLower(text)

	for _, entry := range grammarCorrections {
		if strings.Contains(lowered, entry.Mistake) {
			return entry.Correction, true
		}
	}

	if pluralSubjectWithSForm.MatchString(lowered) {
		return adviceBaseForm, true
	}
	if singularSubjectWithBaseForm.MatchString(lowered) {
		return adviceSForm, true
	}

	return "", false
}

// Score computes the heuristic pronunciation score, clamped to [0,100]
func (s *AssessmentService) Score(text string) int {
	words := strings.Fields(text)
	wordCount := len(words)

	score := 70

	if wordCount > 5 {
		score += 10
	}
	if wordCount > 10 {
		score += 10
	}

	longWordBonus := 0
	for _, word := range words {
		if len(word) >= 8 {
			longWordBonus += 2
		}
	}
	if longWordBonus > 10 {
		longWordBonus = 10
	}
	score += longWordBonus

	if strings.Contains(text, ",") {
		score += 5
	}
	if strings.Contains(text, ".") {
		score += 5
	}

	if wordCount < 3 {
		score -= 20
	}

	lowered := strings.ToLower(text)
	soundsFound := 0
	for _, sound := range challengingSounds {
		if strings.Contains(lowered, sound) {
			soundsFound++
		}
	}
	if soundsFound >= 2 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Feedback maps a score to one of five canned sentences
func (s *AssessmentService) Feedback(score int) string {
	switch {
	case score >= 90:
		return "Excellent pronunciation! Your speech is very clear and natural."
	case score >= 80:
		return "Great job! Your pronunciation is clear with only minor issues."
	case score >= 70:
		return defaultFeedback
	case score >= 60:
		return "Not bad! Try speaking a little slower and focus on difficult sounds."
	default:
		return "Keep practicing! Repeating short sentences out loud every day will help."
	}
}
