package session

import "testing"

func TestClassifyWords(t *testing.T) {
	cases := []struct {
		text      string
		hasTarget bool
		hasOther  bool
	}{
		{"hola buenos dias", true, false},
		{"quiero una cita por favor", true, false},
		{"I want una cita please", true, true},
		{"can you help me", false, true},
		{"", false, false},
		{"HOLA", true, false},
	}
	for _, tc := range cases {
		target, other := classifyWords(tc.text)
		if target != tc.hasTarget || other != tc.hasOther {
			t.Errorf("classifyWords(%q) = (%v, %v), want (%v, %v)",
				tc.text, target, other, tc.hasTarget, tc.hasOther)
		}
	}
}

func TestCoachingTracker_Scoring(t *testing.T) {
	cases := []struct {
		name       string
		targetOnly int
		target     int
		simplify   int
		wantScore  int
		wantTier   int
	}{
		{"no practice", 0, 0, 0, 50, 1},
		{"one clean answer", 1, 1, 0, 70, 2},
		{"two clean answers", 2, 2, 0, 90, 3},
		{"two answers with struggles", 2, 2, 3, 60, 2},
		{"heavy simplification", 0, 0, 5, 0, 0},
		{"mixed answers only", 0, 2, 0, 70, 2},
	}
	for _, tc := range cases {
		c := coachingTracker{targetOnly: tc.targetOnly, target: tc.target, simplifications: tc.simplify}
		report := c.Report()
		if report.Score != tc.wantScore || report.Tier != tc.wantTier {
			t.Errorf("%s: got score=%d tier=%d, want score=%d tier=%d",
				tc.name, report.Score, report.Tier, tc.wantScore, tc.wantTier)
		}
	}
}

func TestCoachingTracker_Markers(t *testing.T) {
	var c coachingTracker
	c.ObserveCoach("Hmm, let's try a simpler phrase. ¿Cómo estás?")
	c.ObserveCoach("Close! Let's try that again.")
	c.ObserveCoach("Okay, switching back to English now.")

	report := c.Report()
	if report.Simplifications != 1 || report.Repeats != 1 || !report.OptedOut {
		t.Fatalf("unexpected marker counts: %+v", report)
	}
}

func TestCoachingTracker_ScoreClamped(t *testing.T) {
	c := coachingTracker{simplifications: 20}
	if report := c.Report(); report.Score != 0 || report.Tier != 0 {
		t.Fatalf("score must clamp at 0: %+v", report)
	}
}
