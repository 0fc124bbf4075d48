package quiz

// Score grades the submitted answers (question id -> letter) of an attempt.
// Every question yields exactly one Answer; a missing or blank selection counts as wrong.
// Letters are compared case-insensitively.
func Score(attemptID string, questions []Question, submitted map[string]string) (answers []Answer, score, total int) {
	answers = make([]Answer, 0, len(questions))
	for _, q := range questions {
		selected := NormalizeAnswer(submitted[q.ID])
		correct := selected != "" && selected == NormalizeAnswer(q.CorrectAnswer)
		if correct {
			score += q.Points
		}
		total += q.Points
		answers = append(answers, Answer{
			AttemptID:      attemptID,
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      correct,
		})
	}
	return answers, score, total
}

// TotalPoints sums the points of questions.
func TotalPoints(questions []Question) int {
	var total int
	for _, q := range questions {
		total += q.Points
	}
	return total
}
