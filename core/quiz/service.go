package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("quiz not found")
	ErrAttemptNotFound   = core.NewNotFoundError("attempt not found")
	ErrAttemptsExhausted = core.NewInfoError("you have used all your attempts for this quiz")
	ErrQuizExpired       = core.NewValidationError(errors.New("this quiz has expired"))
	ErrAttemptCompleted  = core.NewConflictError("this attempt has already been submitted")
	ErrAttemptInProgress = core.NewConflictError("an attempt is already in progress")
	ErrQuestionsLocked   = core.NewValidationError(
		errors.New("questions cannot be changed once students have attempted the quiz"),
		core.FieldError{Field: "questions", Error: "questions cannot be changed once students have attempted the quiz"},
	)
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuiz(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Quiz, error)
		UpdateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		// DeleteQuiz removes the quiz with its questions, attempts and answers.
		DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryQuizzes(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Quiz, error)

		// ReplaceQuestions drops the questions of the quiz and inserts qs (ordered by Position).
		ReplaceQuestions(ctx context.Context, quizID string, qs []Question, exec ...core.DBExecutor) ([]Question, error)
		QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]Question, error)

		// CreateAttempt returns ErrAttemptInProgress when the student already has an attempt in progress.
		CreateAttempt(ctx context.Context, att Attempt, exec ...core.DBExecutor) (Attempt, error)
		GetAttempt(ctx context.Context, filter AttemptFilter, exec ...core.DBExecutor) (Attempt, error)
		GetInProgressAttempt(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) (Attempt, error)
		CountAttempts(ctx context.Context, quizID string, exec ...core.DBExecutor) (int, error)
		CountCompletedAttempts(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) (int, error)
		// MarkAttemptCompleted stores score, total & completed_at; it returns ErrAttemptCompleted when the
		// attempt was already completed.
		MarkAttemptCompleted(ctx context.Context, att Attempt, exec ...core.DBExecutor) (Attempt, error)
		// CreateAnswers is write-once: an answer already stored for the same question is kept.
		CreateAnswers(ctx context.Context, answers []Answer, exec ...core.DBExecutor) error
		QueryAnswers(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]Answer, error)
		// QueryAttempts lists the attempts at a quiz, newest first; studentID narrows it to one student.
		QueryAttempts(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) ([]Attempt, error)
		QueryInProgressAttempts(ctx context.Context, exec ...core.DBExecutor) ([]StaleAttempt, error)
	}

	Service struct {
		tx     core.Transactor
		repo   Repository
		gate   course.Gate
		grace  time.Duration
		logger core.Logger
	}
)

func NewService(tx core.Transactor, repo Repository, gate course.Gate, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		tx:     tx,
		repo:   repo,
		gate:   gate,
		grace:  conf.Quiz.GraceWindow,
		logger: logger,
	}
}

func newQuestions(nqs []NewQuestion) []Question {
	qs := make([]Question, 0, len(nqs))
	for i, nq := range nqs {
		qs = append(qs, Question{
			Position:      i + 1,
			Text:          nq.Text,
			OptionA:       nq.OptionA,
			OptionB:       nq.OptionB,
			OptionC:       nq.OptionC,
			OptionD:       nq.OptionD,
			CorrectAnswer: nq.CorrectAnswer,
			Points:        nq.Points,
		})
	}
	return qs
}

// Create adds a quiz with its questions to a course the actor manages.
func (svc *Service) Create(ctx context.Context, actor user.Identity, courseID string, nq NewQuiz) (Quiz, []Question, error) {
	if _, err := svc.gate.ManagedCourse(ctx, actor, courseID); err != nil {
		return Quiz{}, nil, err
	}

	qs := newQuestions(nq.Questions)
	now := core.Now()
	qz := Quiz{
		CourseID:    courseID,
		Title:       nq.Title,
		Description: nq.Description,
		TimeLimit:   nq.TimeLimit,
		MaxAttempts: nq.MaxAttempts,
		TotalPoints: TotalPoints(qs),
		DueDate:     nq.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if qz, err = svc.repo.CreateQuiz(ctx, qz, exec); err != nil {
			return errors.Wrap(err, "creating quiz")
		}
		qs, err = svc.repo.ReplaceQuestions(ctx, qz.ID, qs, exec)
		return errors.Wrap(err, "creating questions")
	})
	if err != nil {
		return Quiz{}, nil, err
	}
	return qz, qs, nil
}

func (svc *Service) managed(ctx context.Context, actor user.Identity, quizID string) (Quiz, error) {
	filter := GetFilter{ID: quizID}
	switch {
	case actor.IsAdmin():
	case actor.IsActiveTeacher():
		filter.TeacherID = actor.ID
	default:
		return Quiz{}, ErrNotFound
	}
	return svc.repo.GetQuiz(ctx, filter)
}

// Update changes the quiz settings. Questions may only be replaced while nobody attempted the quiz.
func (svc *Service) Update(ctx context.Context, actor user.Identity, quizID string, uq UpdateQuiz) (Quiz, error) {
	qz, err := svc.managed(ctx, actor, quizID)
	if err != nil {
		return Quiz{}, err
	}

	if uq.Title != "" {
		qz.Title = uq.Title
	}
	if uq.Description != nil {
		qz.Description = *uq.Description
	}
	if uq.TimeLimit > 0 {
		qz.TimeLimit = uq.TimeLimit
	}
	if uq.MaxAttempts != nil {
		qz.MaxAttempts = *uq.MaxAttempts
	}
	if uq.DueDate != nil {
		qz.DueDate = uq.DueDate
	}
	qz.UpdatedAt = core.Now()

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if uq.Questions != nil {
			n, err := svc.repo.CountAttempts(ctx, qz.ID, exec)
			if err != nil {
				return errors.Wrap(err, "counting attempts")
			}
			if n > 0 {
				return ErrQuestionsLocked
			}
			qs, err := svc.repo.ReplaceQuestions(ctx, qz.ID, newQuestions(uq.Questions), exec)
			if err != nil {
				return errors.Wrap(err, "replacing questions")
			}
			qz.TotalPoints = TotalPoints(qs)
		}
		var err error
		qz, err = svc.repo.UpdateQuiz(ctx, qz, exec)
		return errors.Wrap(err, "updating quiz")
	})
	if err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.Identity, quizID string) error {
	qz, err := svc.managed(ctx, actor, quizID)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteQuiz(ctx, qz.ID), "deleting quiz")
}

func (svc *Service) ListForCourse(ctx context.Context, actor user.Identity, courseID string) ([]Quiz, error) {
	var err error
	if actor.IsStudent() {
		_, err = svc.gate.EnrolledCourse(ctx, actor, courseID)
	} else {
		_, err = svc.gate.ManagedCourse(ctx, actor, courseID)
	}
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryQuizzes(ctx, courseID)
}

// Get returns the quiz with its questions. Students never see the correct answers.
func (svc *Service) Get(ctx context.Context, actor user.Identity, quizID string) (Quiz, []Question, error) {
	var qz Quiz
	var err error
	if actor.IsStudent() {
		qz, err = svc.repo.GetQuiz(ctx, GetFilter{ID: quizID, StudentID: actor.ID})
	} else {
		qz, err = svc.managed(ctx, actor, quizID)
	}
	if err != nil {
		return Quiz{}, nil, err
	}
	qs, err := svc.repo.QueryQuestions(ctx, qz.ID)
	if err != nil {
		return Quiz{}, nil, errors.Wrap(err, "querying questions")
	}
	if actor.IsStudent() {
		qs = StripAnswers(qs)
	}
	return qz, qs, nil
}

func (svc *Service) overdue(qz Quiz, att Attempt, now time.Time) bool {
	return now.Sub(att.StartedAt) > qz.TimeLimitDuration()+svc.grace
}

func timeRemaining(qz Quiz, att Attempt, now time.Time) int {
	left := qz.TimeLimitDuration() - now.Sub(att.StartedAt)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

// Enter starts a new attempt or resumes the one in progress.
// A resumed attempt past its time limit (plus the grace window) is submitted on the student's behalf
// with no credit, and the returned Session is flagged AutoSubmitted.
func (svc *Service) Enter(ctx context.Context, actor user.Identity, quizID string) (Session, error) {
	if !actor.IsStudent() {
		return Session{}, ErrNotFound
	}
	qz, err := svc.repo.GetQuiz(ctx, GetFilter{ID: quizID, StudentID: actor.ID})
	if err != nil {
		return Session{}, err
	}
	now := core.Now()

	completed, err := svc.repo.CountCompletedAttempts(ctx, qz.ID, actor.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "counting completed attempts")
	}
	if qz.AttemptsExhausted(completed) {
		return Session{}, ErrAttemptsExhausted
	}
	if qz.IsExpired(now) {
		return Session{}, ErrQuizExpired
	}

	qs, err := svc.repo.QueryQuestions(ctx, qz.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying questions")
	}
	sess := Session{Quiz: qz, Questions: StripAnswers(qs)}

	att, err := svc.repo.GetInProgressAttempt(ctx, qz.ID, actor.ID)
	switch {
	case err == nil:
		if svc.overdue(qz, att, now) {
			res, err := svc.forceComplete(ctx, att, qs)
			if err != nil {
				return Session{}, err
			}
			sess.Attempt, sess.Questions, sess.AutoSubmitted = res.Attempt, nil, true
			return sess, nil
		}
		sess.Attempt = att
		sess.TimeRemaining = timeRemaining(qz, att, now)
		return sess, nil
	case errors.Cause(err) != ErrAttemptNotFound:
		return Session{}, errors.Wrap(err, "finding attempt in progress")
	}

	att, err = svc.repo.CreateAttempt(ctx, Attempt{
		QuizID:      qz.ID,
		StudentID:   actor.ID,
		StartedAt:   now,
		TotalPoints: qz.TotalPoints,
	})
	if err != nil {
		if errors.Cause(err) != ErrAttemptInProgress {
			return Session{}, errors.Wrap(err, "creating attempt")
		}
		// a concurrent request won the race; resume its attempt
		if att, err = svc.repo.GetInProgressAttempt(ctx, qz.ID, actor.ID); err != nil {
			return Session{}, errors.Wrap(err, "finding attempt in progress")
		}
		sess.Attempt = att
		sess.TimeRemaining = timeRemaining(qz, att, now)
		return sess, nil
	}
	sess.Attempt = att
	sess.IsNewAttempt = true
	sess.TimeRemaining = qz.TimeLimit * 60
	return sess, nil
}

// openAttempt loads the actor's attempt in progress with its quiz & questions.
func (svc *Service) openAttempt(ctx context.Context, actor user.Identity, attemptID string) (Attempt, Quiz, []Question, error) {
	if !actor.IsStudent() {
		return Attempt{}, Quiz{}, nil, ErrAttemptNotFound
	}
	att, err := svc.repo.GetAttempt(ctx, AttemptFilter{ID: attemptID, StudentID: actor.ID})
	if err != nil {
		return Attempt{}, Quiz{}, nil, err
	}
	if att.IsCompleted() {
		return Attempt{}, Quiz{}, nil, ErrAttemptCompleted
	}
	qz, err := svc.repo.GetQuiz(ctx, GetFilter{ID: att.QuizID})
	if err != nil {
		return Attempt{}, Quiz{}, nil, errors.Wrap(err, "finding quiz")
	}
	qs, err := svc.repo.QueryQuestions(ctx, qz.ID)
	if err != nil {
		return Attempt{}, Quiz{}, nil, errors.Wrap(err, "querying questions")
	}
	return att, qz, qs, nil
}

// savedSelections merges the answers already stored for an attempt over submitted.
func (svc *Service) savedSelections(ctx context.Context, attemptID string, submitted map[string]string) (map[string]string, error) {
	saved, err := svc.repo.QueryAnswers(ctx, attemptID)
	if err != nil {
		return nil, errors.Wrap(err, "querying saved answers")
	}
	selections := make(map[string]string, len(submitted)+len(saved))
	for qID, ans := range submitted {
		selections[qID] = ans
	}
	for _, ans := range saved {
		selections[ans.QuestionID] = ans.SelectedAnswer
	}
	return selections, nil
}

// SaveAnswers stores answers to an attempt in progress before it is submitted.
// A question can only be answered once; later selections for it are ignored.
// It returns the answers saved so far, without their correctness.
func (svc *Service) SaveAnswers(ctx context.Context, actor user.Identity, attemptID string, sa SubmitAttempt) ([]Answer, error) {
	if err := sa.checkLetters(); err != nil {
		return nil, err
	}
	att, qz, qs, err := svc.openAttempt(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	if svc.overdue(qz, att, core.Now()) {
		if _, err = svc.forceComplete(ctx, att, qs); err != nil {
			return nil, err
		}
		return nil, ErrAttemptCompleted
	}

	scored, _, _ := Score(att.ID, qs, sa.Answers)
	answers := make([]Answer, 0, len(sa.Answers))
	for _, ans := range scored {
		if ans.SelectedAnswer != "" {
			answers = append(answers, ans)
		}
	}
	if err = svc.repo.CreateAnswers(ctx, answers); err != nil {
		return nil, errors.Wrap(err, "saving answers")
	}

	saved, err := svc.repo.QueryAnswers(ctx, att.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying saved answers")
	}
	for i := range saved {
		saved[i].IsCorrect = false
	}
	return saved, nil
}

// Submit scores the answers and completes the attempt. Answers saved earlier take precedence over
// the submitted ones. Answers arriving after the time limit (plus the grace window) are discarded
// and the attempt is completed with no credit.
func (svc *Service) Submit(ctx context.Context, actor user.Identity, attemptID string, sa SubmitAttempt) (Result, error) {
	if err := sa.checkLetters(); err != nil {
		return Result{}, err
	}
	att, qz, qs, err := svc.openAttempt(ctx, actor, attemptID)
	if err != nil {
		return Result{}, err
	}
	if svc.overdue(qz, att, core.Now()) {
		return svc.forceComplete(ctx, att, qs)
	}
	selections, err := svc.savedSelections(ctx, att.ID, sa.Answers)
	if err != nil {
		return Result{}, err
	}
	answers, score, total := Score(att.ID, qs, selections)
	return svc.complete(ctx, att, answers, score, total)
}

// forceComplete ends an attempt with a score of 0. Saved answers are kept and every unanswered
// question gets a blank answer.
func (svc *Service) forceComplete(ctx context.Context, att Attempt, qs []Question) (Result, error) {
	selections, err := svc.savedSelections(ctx, att.ID, nil)
	if err != nil {
		return Result{}, err
	}
	answers, _, total := Score(att.ID, qs, selections)
	res, err := svc.complete(ctx, att, answers, 0, total)
	res.AutoSubmitted = err == nil
	return res, err
}

func (svc *Service) complete(ctx context.Context, att Attempt, answers []Answer, score, total int) (Result, error) {
	now := core.Now()
	att.Score = score
	att.TotalPoints = total
	att.CompletedAt = &now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		// the completed_at guard runs first so a concurrent submit can't write answers twice
		if att, err = svc.repo.MarkAttemptCompleted(ctx, att, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.CreateAnswers(ctx, answers, exec), "saving answers")
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "completing attempt")
	}
	return Result{Attempt: att, Answers: answers}, nil
}

// AttemptResult returns a completed attempt with its answers to the student who made it or the quiz teacher.
func (svc *Service) AttemptResult(ctx context.Context, actor user.Identity, attemptID string) (Result, error) {
	filter := AttemptFilter{ID: attemptID}
	if actor.IsStudent() {
		filter.StudentID = actor.ID
	}
	att, err := svc.repo.GetAttempt(ctx, filter)
	if err != nil {
		return Result{}, err
	}
	if !actor.IsStudent() {
		if _, err = svc.managed(ctx, actor, att.QuizID); err != nil {
			return Result{}, ErrAttemptNotFound
		}
	}
	if !att.IsCompleted() {
		return Result{}, ErrAttemptInProgress
	}
	answers, err := svc.repo.QueryAnswers(ctx, att.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying answers")
	}
	return Result{Attempt: att, Answers: answers}, nil
}

// Results lists every attempt at a quiz the actor manages.
func (svc *Service) Results(ctx context.Context, actor user.Identity, quizID string) ([]Attempt, error) {
	qz, err := svc.managed(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAttempts(ctx, qz.ID, "")
}

// History lists the actor's own attempts at a quiz.
func (svc *Service) History(ctx context.Context, actor user.Identity, quizID string) ([]Attempt, error) {
	if !actor.IsStudent() {
		return nil, ErrNotFound
	}
	qz, err := svc.repo.GetQuiz(ctx, GetFilter{ID: quizID, StudentID: actor.ID})
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAttempts(ctx, qz.ID, actor.ID)
}

// ExpireStale force-completes every in-progress attempt past its time limit plus the grace window.
// It returns how many attempts were closed.
func (svc *Service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := svc.repo.QueryInProgressAttempts(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying attempts in progress")
	}

	now := core.Now()
	var closed int
	for _, sa := range stale {
		qz := Quiz{ID: sa.QuizID, TimeLimit: sa.TimeLimit}
		if !svc.overdue(qz, sa.Attempt, now) {
			continue
		}
		qs, err := svc.repo.QueryQuestions(ctx, sa.QuizID)
		if err != nil {
			return closed, errors.Wrap(err, "querying questions")
		}
		if _, err = svc.forceComplete(ctx, sa.Attempt, qs); err != nil {
			if errors.Cause(err) == ErrAttemptCompleted {
				continue // the student submitted in the meantime
			}
			return closed, errors.Wrap(err, fmt.Sprintf("expiring attempt %s", sa.ID))
		}
		closed++
	}
	return closed, nil
}
