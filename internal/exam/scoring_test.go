package exam

import (
	"testing"

	"github.com/pavelanni/questionai/internal/model"
)

func TestEvaluateExample(t *testing.T) {
	questions := []model.Question{
		{Kind: model.KindShortAnswer, Prompt: "Capital of France?", ExpectedAnswer: "Paris", Marks: 2},
		{Kind: model.KindShortAnswer, Prompt: "Red planet?", ExpectedAnswer: "Mars", Marks: 3},
	}
	sc := Evaluate(questions, map[int]string{0: "Paris", 1: "Venus"})

	if sc.TotalMarks != 5 {
		t.Errorf("TotalMarks = %d, want 5", sc.TotalMarks)
	}
	if sc.MarksObtained != 2 {
		t.Errorf("MarksObtained = %d, want 2", sc.MarksObtained)
	}
	if sc.Percentage != 40.0 {
		t.Errorf("Percentage = %v, want 40", sc.Percentage)
	}
	if sc.Grade != "B" {
		t.Errorf("Grade = %q, want B", sc.Grade)
	}
	if len(sc.Outcomes) != 2 || !sc.Outcomes[0].Correct || sc.Outcomes[1].Correct {
		t.Errorf("unexpected outcomes: %+v", sc.Outcomes)
	}
}

func TestEvaluate(t *testing.T) {
	questions := []model.Question{
		{ExpectedAnswer: "a", Marks: 1},
		{ExpectedAnswer: "b", Marks: 4},
		{ExpectedAnswer: "c", Marks: 5},
	}

	tests := []struct {
		name         string
		questions    []model.Question
		answers      map[int]string
		wantTotal    int
		wantObtained int
		wantPercent  float64
	}{
		{"all correct", questions, map[int]string{0: "a", 1: "b", 2: "c"}, 10, 10, 100},
		{"all wrong", questions, map[int]string{0: "x", 1: "y", 2: "z"}, 10, 0, 0},
		{"unanswered", questions, nil, 10, 0, 0},
		{"partially answered", questions, map[int]string{2: "c"}, 10, 5, 50},
		{"case sensitive", questions, map[int]string{0: "A", 1: "B", 2: "C"}, 10, 0, 0},
		{"no partial credit for whitespace", questions, map[int]string{1: "b "}, 10, 0, 0},
		{"empty set", nil, map[int]string{0: "a"}, 0, 0, 0},
		{
			"missing marks weigh one",
			[]model.Question{{ExpectedAnswer: "a"}, {ExpectedAnswer: "b", Marks: 3}},
			map[int]string{0: "a"},
			4, 1, 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Evaluate(tt.questions, tt.answers)
			if sc.TotalMarks != tt.wantTotal {
				t.Errorf("TotalMarks = %d, want %d", sc.TotalMarks, tt.wantTotal)
			}
			if sc.MarksObtained != tt.wantObtained {
				t.Errorf("MarksObtained = %d, want %d", sc.MarksObtained, tt.wantObtained)
			}
			if sc.Percentage != tt.wantPercent {
				t.Errorf("Percentage = %v, want %v", sc.Percentage, tt.wantPercent)
			}
			if sc.MarksObtained > sc.TotalMarks {
				t.Errorf("obtained %d exceeds total %d", sc.MarksObtained, sc.TotalMarks)
			}
		})
	}
}

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{100, "A+"},
		{90.0, "A+"},
		{89.999, "A"},
		{80.0, "A"},
		{79.999, "B+"},
		{70.0, "B+"},
		{69.999, "B"},
		{0, "B"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.percentage); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tt.percentage, got, tt.want)
		}
	}
}
