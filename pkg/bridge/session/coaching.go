package session

import "strings"

// Lexical word lists for classifying learner utterances. Matching is
// case-insensitive and whole-word; the lists are deliberately small and
// high-frequency so short answers still classify.
var spanishWords = map[string]struct{}{
	"hola": {}, "buenos": {}, "buenas": {}, "dias": {}, "días": {}, "tardes": {},
	"gracias": {}, "por": {}, "favor": {}, "si": {}, "sí": {}, "no": {},
	"quiero": {}, "tengo": {}, "necesito": {}, "puedo": {}, "donde": {}, "dónde": {},
	"cuando": {}, "cuándo": {}, "como": {}, "cómo": {}, "que": {}, "qué": {},
	"estoy": {}, "esta": {}, "está": {}, "bien": {}, "muy": {}, "mucho": {},
	"ayuda": {}, "cita": {}, "manana": {}, "mañana": {}, "hoy": {}, "ahora": {},
	"uno": {}, "dos": {}, "tres": {}, "cuatro": {}, "cinco": {},
}

var englishWords = map[string]struct{}{
	"the": {}, "is": {}, "are": {}, "was": {}, "what": {}, "where": {}, "when": {},
	"how": {}, "can": {}, "could": {}, "would": {}, "want": {}, "need": {},
	"have": {}, "has": {}, "please": {}, "thanks": {}, "thank": {}, "you": {},
	"yes": {}, "hello": {}, "help": {}, "today": {}, "tomorrow": {}, "now": {},
	"appointment": {}, "sorry": {}, "don't": {}, "dont": {}, "i'm": {}, "im": {},
}

// Marker phrases the coach speaks; detected in assistant output to keep
// counters honest without trusting the model to self-report.
const (
	simplifyMarker = "let's try a simpler phrase"
	repeatMarker   = "let's try that again"
	optOutMarker   = "switching back to english"
)

// coachingTracker maintains running classification counts for one
// coaching-mode call.
type coachingTracker struct {
	targetOnly      int
	target          int
	simplifications int
	repeats         int
	optedOut        bool
}

// ObserveLearner classifies one completed learner utterance.
func (c *coachingTracker) ObserveLearner(transcript string) {
	hasTarget, hasOther := classifyWords(transcript)
	if !hasTarget {
		return
	}
	c.target++
	if !hasOther {
		c.targetOnly++
	}
}

// ObserveCoach scans one assistant turn for marker phrases.
func (c *coachingTracker) ObserveCoach(text string) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, simplifyMarker) {
		c.simplifications++
	}
	if strings.Contains(lower, repeatMarker) {
		c.repeats++
	}
	if strings.Contains(lower, optOutMarker) {
		c.optedOut = true
	}
}

// Report computes the final score and tier. The score starts from a
// neutral 50 so a short call with a couple of clean answers lands in the
// upper tiers and repeated simplifications can still drag it down.
func (c *coachingTracker) Report() CoachingReport {
	score := 50
	if c.targetOnly >= 1 {
		score += 20
	}
	if c.target >= 2 {
		score += 20
	}
	score -= 10 * c.simplifications
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	tier := 3
	switch {
	case score <= 25:
		tier = 0
	case score <= 50:
		tier = 1
	case score <= 75:
		tier = 2
	}

	return CoachingReport{
		TargetOnlyAnswers: c.targetOnly,
		TargetAnswers:     c.target,
		Simplifications:   c.simplifications,
		Repeats:           c.repeats,
		OptedOut:          c.optedOut,
		Score:             score,
		Tier:              tier,
	}
}

// classifyWords reports whether the text contains any target-language
// words and any non-target-language words, on whole-word matches.
func classifyWords(text string) (hasTarget, hasOther bool) {
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	}) {
		if _, ok := spanishWords[word]; ok {
			hasTarget = true
			continue
		}
		if _, ok := englishWords[word]; ok {
			hasOther = true
		}
	}
	return hasTarget, hasOther
}

func isWordRune(r rune) bool {
	if r == '\'' {
		return true
	}
	return r == 'ñ' || r == 'á' || r == 'é' || r == 'í' || r == 'ó' || r == 'ú' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
