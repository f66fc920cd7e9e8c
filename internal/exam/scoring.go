package exam

import "github.com/pavelanni/questionai/internal/model"

// Score is the outcome of grading one set of answers.
type Score struct {
	TotalMarks    int
	MarksObtained int
	Percentage    float64
	Grade         string
	Outcomes      []model.QuestionOutcome
}

// Evaluate grades answers against the questions by exact, case-sensitive
// comparison with each expected answer. Unanswered questions earn nothing.
func Evaluate(questions []model.Question, answers map[int]string) Score {
	var sc Score
	sc.Outcomes = make([]model.QuestionOutcome, 0, len(questions))
	for i, q := range questions {
		w := q.Weight()
		sc.TotalMarks += w
		ans, ok := answers[i]
		correct := ok && ans == q.ExpectedAnswer
		if correct {
			sc.MarksObtained += w
		}
		sc.Outcomes = append(sc.Outcomes, model.QuestionOutcome{Index: i, Marks: w, Correct: correct})
	}
	if sc.TotalMarks > 0 {
		sc.Percentage = float64(sc.MarksObtained) / float64(sc.TotalMarks) * 100
	}
	sc.Grade = LetterGrade(sc.Percentage)
	return sc
}

// LetterGrade maps a percentage onto the fixed grade scale. Thresholds are
// inclusive.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B+"
	default:
		return "B"
	}
}
