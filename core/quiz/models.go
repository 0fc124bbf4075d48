package quiz

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

// UnlimitedAttempts is the MaxAttempts value that lifts the attempt limit.
const UnlimitedAttempts = -1

var answerLetters = []string{"A", "B", "C", "D"}

type Quiz struct {
	ID          string     `json:"id" db:"id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	TimeLimit   int        `json:"time_limit" db:"time_limit"` // minutes
	MaxAttempts int        `json:"max_attempts" db:"max_attempts"`
	TotalPoints int        `json:"total_points" db:"total_points"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

func (q Quiz) TimeLimitDuration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Minute
}

func (q Quiz) IsExpired(now time.Time) bool {
	return q.DueDate != nil && now.After(*q.DueDate)
}

// AttemptsExhausted reports whether completed attempts used up the quiz allowance.
func (q Quiz) AttemptsExhausted(completed int) bool {
	return q.MaxAttempts > 0 && completed >= q.MaxAttempts
}

type Question struct {
	ID            string `json:"id" db:"id"`
	QuizID        string `json:"quiz_id" db:"quiz_id"`
	Position      int    `json:"position" db:"position"`
	Text          string `json:"text" db:"text"`
	OptionA       string `json:"option_a" db:"option_a"`
	OptionB       string `json:"option_b" db:"option_b"`
	OptionC       string `json:"option_c" db:"option_c"`
	OptionD       string `json:"option_d" db:"option_d"`
	CorrectAnswer string `json:"correct_answer,omitempty" db:"correct_answer"`
	Points        int    `json:"points" db:"points"`
}

// StripAnswers hides the correct answers of questions shown to students.
func StripAnswers(qs []Question) []Question {
	stripped := make([]Question, len(qs))
	for i, q := range qs {
		q.CorrectAnswer = ""
		stripped[i] = q
	}
	return stripped
}

type Attempt struct {
	ID          string     `json:"id" db:"id"`
	QuizID      string     `json:"quiz_id" db:"quiz_id"`
	StudentID   string     `json:"student_id" db:"student_id"`
	StudentName string     `json:"student_name,omitempty" db:"student_name"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	Score       int        `json:"score" db:"score"`
	TotalPoints int        `json:"total_points" db:"total_points"`
}

func (a Attempt) IsCompleted() bool { return a.CompletedAt != nil }

type Answer struct {
	AttemptID      string `json:"attempt_id" db:"attempt_id"`
	QuestionID     string `json:"question_id" db:"question_id"`
	SelectedAnswer string `json:"selected_answer" db:"selected_answer"`
	IsCorrect      bool   `json:"is_correct" db:"is_correct"`
}

// Session is what a student gets when entering a quiz.
type Session struct {
	Quiz          Quiz       `json:"quiz"`
	Attempt       Attempt    `json:"attempt"`
	Questions     []Question `json:"questions,omitempty"`
	IsNewAttempt  bool       `json:"is_new_attempt"`
	TimeRemaining int        `json:"time_remaining"` // seconds
	AutoSubmitted bool       `json:"auto_submitted"`
}

// Result is a completed attempt with its answers.
type Result struct {
	Attempt       Attempt  `json:"attempt"`
	Answers       []Answer `json:"answers"`
	AutoSubmitted bool     `json:"auto_submitted"`
}

type NewQuestion struct {
	Text          string `json:"text" validate:"required,notblank"`
	OptionA       string `json:"option_a" validate:"required,notblank"`
	OptionB       string `json:"option_b" validate:"required,notblank"`
	OptionC       string `json:"option_c" validate:"required,notblank"`
	OptionD       string `json:"option_d" validate:"required,notblank"`
	CorrectAnswer string `json:"correct_answer" validate:"required,answer_letter"`
	Points        int    `json:"points" validate:"required,min=1,max=1000"`
}

func (nq *NewQuestion) clean() {
	nq.Text = core.CleanString(nq.Text)
	nq.OptionA = core.CleanString(nq.OptionA)
	nq.OptionB = core.CleanString(nq.OptionB)
	nq.OptionC = core.CleanString(nq.OptionC)
	nq.OptionD = core.CleanString(nq.OptionD)
	nq.CorrectAnswer = NormalizeAnswer(nq.CorrectAnswer)
}

type NewQuiz struct {
	Title       string        `json:"title" validate:"required,notblank,max=200"`
	Description string        `json:"description" validate:"omitempty,max=5000"`
	TimeLimit   int           `json:"time_limit" validate:"required,min=1,max=1440"`
	MaxAttempts int           `json:"max_attempts" validate:"max_attempts"`
	DueDate     *time.Time    `json:"due_date"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	if nq.DueDate != nil {
		due := nq.DueDate.UTC()
		nq.DueDate = &due
	}
	for i := range nq.Questions {
		nq.Questions[i].clean()
	}
	return validate.Struct(nq)
}

// UpdateQuiz leaves zero-valued fields untouched. Questions, when given, replace the whole list.
type UpdateQuiz struct {
	Title       string        `json:"title" validate:"omitempty,max=200"`
	Description *string       `json:"description" validate:"omitempty,max=5000"`
	TimeLimit   int           `json:"time_limit" validate:"omitempty,min=1,max=1440"`
	MaxAttempts *int          `json:"max_attempts" validate:"omitempty,max_attempts"`
	DueDate     *time.Time    `json:"due_date"`
	Questions   []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	uq.Title = core.CleanString(uq.Title)
	if uq.Description != nil {
		desc := core.CleanString(*uq.Description)
		uq.Description = &desc
	}
	if uq.DueDate != nil {
		due := uq.DueDate.UTC()
		uq.DueDate = &due
	}
	for i := range uq.Questions {
		uq.Questions[i].clean()
	}
	return validate.Struct(uq)
}

// SubmitAttempt maps question ids to the selected answer letter.
// Blank selections leave the question unanswered.
type SubmitAttempt struct {
	Answers map[string]string `json:"answers" validate:"dive,omitempty,answer_letter"`
}

func (sa *SubmitAttempt) Validate(validate *validator.Validate) error {
	for qID, ans := range sa.Answers {
		sa.Answers[qID] = NormalizeAnswer(ans)
	}
	return validate.Struct(sa)
}

// checkLetters rejects any selection that is neither blank nor an answer letter.
func (sa SubmitAttempt) checkLetters() error {
	for qID, ans := range sa.Answers {
		if ans = NormalizeAnswer(ans); ans != "" && !isAnswerLetter(ans) {
			return core.NewValidationError(errors.New(answerLetterText), core.FieldError{Field: "answers[" + qID + "]", Error: answerLetterText})
		}
	}
	return nil
}

func isAnswerLetter(ans string) bool {
	for _, l := range answerLetters {
		if ans == l {
			return true
		}
	}
	return false
}

// NormalizeAnswer upper-cases and trims an answer letter.
func NormalizeAnswer(ans string) string {
	return strings.ToUpper(strings.TrimSpace(ans))
}

// GetFilter selects a single Quiz. TeacherID restricts it to the teacher's courses and
// StudentID to the courses the student is enrolled in.
type GetFilter struct {
	ID        string
	TeacherID string
	StudentID string
}

// AttemptFilter selects a single Attempt by ID; StudentID restricts it to the student's own attempts.
type AttemptFilter struct {
	ID        string
	StudentID string
}

// StaleAttempt is an in-progress attempt with the time limit of its quiz.
type StaleAttempt struct {
	Attempt
	TimeLimit int `db:"time_limit"`
}
