package dummydb

import (
	"context"
	"sort"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
)

// deleteQuiz removes a quiz with its questions, attempts & answers. The caller holds the write lock.
func (db *DB) deleteQuiz(id string) {
	for qnID, qn := range db.questions {
		if qn.QuizID == id {
			delete(db.questions, qnID)
		}
	}
	for attID, att := range db.attempts {
		if att.QuizID == id {
			db.deleteAttempt(attID)
		}
	}
	delete(db.quizzes, id)
}

// deleteAttempt removes an attempt with its answers. The caller holds the write lock.
func (db *DB) deleteAttempt(id string) {
	for k := range db.answers {
		if k.attemptID == id {
			delete(db.answers, k)
		}
	}
	delete(db.attempts, id)
}

func (db *DB) withStudentName(att quiz.Attempt) quiz.Attempt {
	att.StudentName = db.users[att.StudentID].FullName
	return att
}

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(_ context.Context, qz quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	qz.ID = newID()
	repo.db.quizzes[qz.ID] = qz
	return qz, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, filter quiz.GetFilter, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	qz, ok := repo.db.quizzes[filter.ID]
	if !ok || !repo.db.courseVisible(qz.CourseID, filter.TeacherID, filter.StudentID) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return qz, nil
}

func (repo *quizRepository) UpdateQuiz(_ context.Context, qz quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.quizzes[qz.ID]; !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	repo.db.quizzes[qz.ID] = qz
	return qz, nil
}

func (repo *quizRepository) DeleteQuiz(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.quizzes[id]; !ok {
		return quiz.ErrNotFound
	}
	repo.db.deleteQuiz(id)
	return nil
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, courseID string, _ ...core.DBExecutor) ([]quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.quizzes {
		if qz.CourseID == courseID {
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) ReplaceQuestions(_ context.Context, quizID string, qs []quiz.Question, _ ...core.DBExecutor) ([]quiz.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.quizzes[quizID]; !ok {
		return nil, quiz.ErrNotFound
	}
	for qnID, qn := range repo.db.questions {
		if qn.QuizID == quizID {
			delete(repo.db.questions, qnID)
		}
	}
	saved := make([]quiz.Question, 0, len(qs))
	for i, qn := range qs {
		qn.ID = newID()
		qn.QuizID = quizID
		qn.Position = i + 1
		repo.db.questions[qn.ID] = qn
		saved = append(saved, qn)
	}
	return saved, nil
}

func (repo *quizRepository) QueryQuestions(_ context.Context, quizID string, _ ...core.DBExecutor) ([]quiz.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	qs := make([]quiz.Question, 0)
	for _, qn := range repo.db.questions {
		if qn.QuizID == quizID {
			qs = append(qs, qn)
		}
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	return qs, nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, att quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.attempts {
		if a.QuizID == att.QuizID && a.StudentID == att.StudentID && !a.IsCompleted() {
			return quiz.Attempt{}, quiz.ErrAttemptInProgress
		}
	}
	att.ID = newID()
	att.StudentName = ""
	repo.db.attempts[att.ID] = att
	return repo.db.withStudentName(att), nil
}

func (repo *quizRepository) GetAttempt(_ context.Context, filter quiz.AttemptFilter, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	att, ok := repo.db.attempts[filter.ID]
	if !ok || (filter.StudentID != "" && att.StudentID != filter.StudentID) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return repo.db.withStudentName(att), nil
}

func (repo *quizRepository) GetInProgressAttempt(_ context.Context, quizID, studentID string, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, att := range repo.db.attempts {
		if att.QuizID == quizID && att.StudentID == studentID && !att.IsCompleted() {
			return repo.db.withStudentName(att), nil
		}
	}
	return quiz.Attempt{}, quiz.ErrAttemptNotFound
}

func (repo *quizRepository) CountAttempts(_ context.Context, quizID string, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, att := range repo.db.attempts {
		if att.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) CountCompletedAttempts(_ context.Context, quizID, studentID string, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, att := range repo.db.attempts {
		if att.QuizID == quizID && att.StudentID == studentID && att.IsCompleted() {
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) MarkAttemptCompleted(_ context.Context, att quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.attempts[att.ID]
	if !ok || orig.IsCompleted() {
		return quiz.Attempt{}, quiz.ErrAttemptCompleted
	}
	orig.CompletedAt = att.CompletedAt
	orig.Score = att.Score
	orig.TotalPoints = att.TotalPoints
	repo.db.attempts[att.ID] = orig
	return repo.db.withStudentName(orig), nil
}

func (repo *quizRepository) CreateAnswers(_ context.Context, answers []quiz.Answer, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, ans := range answers {
		key := answerKey{attemptID: ans.AttemptID, questionID: ans.QuestionID}
		if _, ok := repo.db.answers[key]; !ok {
			repo.db.answers[key] = ans
		}
	}
	return nil
}

func (repo *quizRepository) QueryAnswers(_ context.Context, attemptID string, _ ...core.DBExecutor) ([]quiz.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	answers := make([]quiz.Answer, 0)
	for k, ans := range repo.db.answers {
		if k.attemptID == attemptID {
			answers = append(answers, ans)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		return repo.db.questions[answers[i].QuestionID].Position < repo.db.questions[answers[j].QuestionID].Position
	})
	return answers, nil
}

func (repo *quizRepository) QueryAttempts(_ context.Context, quizID, studentID string, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for _, att := range repo.db.attempts {
		if att.QuizID == quizID && (studentID == "" || att.StudentID == studentID) {
			attempts = append(attempts, repo.db.withStudentName(att))
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].StartedAt.After(attempts[j].StartedAt) })
	return attempts, nil
}

func (repo *quizRepository) QueryInProgressAttempts(_ context.Context, _ ...core.DBExecutor) ([]quiz.StaleAttempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stale := make([]quiz.StaleAttempt, 0)
	for _, att := range repo.db.attempts {
		if att.IsCompleted() {
			continue
		}
		stale = append(stale, quiz.StaleAttempt{Attempt: att, TimeLimit: repo.db.quizzes[att.QuizID].TimeLimit})
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].StartedAt.Before(stale[j].StartedAt) })
	return stale, nil
}
