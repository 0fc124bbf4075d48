package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
)

const (
	quizColumns = `qz.id, qz.course_id, qz.title, qz.description, qz.time_limit, qz.max_attempts, qz.total_points,
		qz.due_date, qz.created_at, qz.updated_at`

	questionColumns = "id, quiz_id, position, text, option_a, option_b, option_c, option_d, correct_answer, points"

	attemptSelect = `SELECT qa.id, qa.quiz_id, qa.student_id, u.full_name AS student_name, qa.started_at,
		qa.completed_at, qa.score, qa.total_points
		FROM quiz_attempts qa JOIN users u ON u.id = qa.student_id`

	inProgressKey = "quiz_attempts_in_progress_idx"
)

type quizRepository struct {
	repository
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{repository{exec: exec}}
}

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	qz.ID = newID()
	q := `INSERT INTO quizzes (id, course_id, title, description, time_limit, max_attempts, total_points, due_date,
		created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :time_limit, :max_attempts, :total_points, :due_date,
		:created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, qz); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return qz, nil
}

func (repo quizRepository) GetQuiz(ctx context.Context, filter quiz.GetFilter, exec ...core.DBExecutor) (quiz.Quiz, error) {
	if !validID(filter.ID) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	exe := repo.getExec(exec)
	var w where
	w.add("qz.id = ?", filter.ID)
	courseScope(&w, filter.TeacherID, filter.StudentID)

	var qz quiz.Quiz
	q := exe.Rebind("SELECT " + quizColumns + " FROM quizzes qz JOIN courses c ON c.id = qz.course_id" + w.String())
	if err := sqlx.GetContext(ctx, exe, &qz, q, w.args...); err != nil {
		return quiz.Quiz{}, trapNoRows(err, quiz.ErrNotFound, "finding quiz")
	}
	return qz, nil
}

func (repo quizRepository) UpdateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	q := `UPDATE quizzes SET title = :title, description = :description, time_limit = :time_limit,
		max_attempts = :max_attempts, total_points = :total_points, due_date = :due_date, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, qz)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if err = rowsAffected(res, quiz.ErrNotFound); err != nil {
		return quiz.Quiz{}, err
	}
	return qz, nil
}

func (repo quizRepository) DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return quiz.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return rowsAffected(res, quiz.ErrNotFound)
}

func (repo quizRepository) QueryQuizzes(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	quizzes := []quiz.Quiz{}
	q := "SELECT " + quizColumns + " FROM quizzes qz WHERE qz.course_id = $1 ORDER BY qz.created_at DESC"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &quizzes, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	return quizzes, nil
}

func (repo quizRepository) ReplaceQuestions(ctx context.Context, quizID string, qs []quiz.Question, exec ...core.DBExecutor) ([]quiz.Question, error) {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx, "DELETE FROM quiz_questions WHERE quiz_id = $1", quizID); err != nil {
		return nil, errors.Wrap(err, "deleting questions")
	}
	if len(qs) == 0 {
		return []quiz.Question{}, nil
	}

	saved := make([]quiz.Question, 0, len(qs))
	for i, qn := range qs {
		qn.ID = newID()
		qn.QuizID = quizID
		qn.Position = i + 1
		saved = append(saved, qn)
	}
	q := `INSERT INTO quiz_questions (` + questionColumns + `)
		VALUES (:id, :quiz_id, :position, :text, :option_a, :option_b, :option_c, :option_d, :correct_answer, :points)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, saved); err != nil {
		return nil, errors.Wrap(err, "inserting questions")
	}
	return saved, nil
}

func (repo quizRepository) QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Question, error) {
	qs := []quiz.Question{}
	q := "SELECT " + questionColumns + " FROM quiz_questions WHERE quiz_id = $1 ORDER BY position ASC"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &qs, q, quizID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return qs, nil
}

func (repo quizRepository) CreateAttempt(ctx context.Context, att quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	att.ID = newID()
	q := `INSERT INTO quiz_attempts (id, quiz_id, student_id, started_at, completed_at, score, total_points)
		VALUES (:id, :quiz_id, :student_id, :started_at, :completed_at, :score, :total_points)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, att); err != nil {
		if isUniqueViolation(err, inProgressKey) {
			return quiz.Attempt{}, quiz.ErrAttemptInProgress
		}
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return att, nil
}

func (repo quizRepository) getAttempt(ctx context.Context, exe core.DBExecutor, w where) (quiz.Attempt, error) {
	var att quiz.Attempt
	if err := sqlx.GetContext(ctx, exe, &att, exe.Rebind(attemptSelect+w.String()), w.args...); err != nil {
		return quiz.Attempt{}, trapNoRows(err, quiz.ErrAttemptNotFound, "finding attempt")
	}
	return att, nil
}

func (repo quizRepository) GetAttempt(ctx context.Context, filter quiz.AttemptFilter, exec ...core.DBExecutor) (quiz.Attempt, error) {
	if !validID(filter.ID) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	var w where
	w.add("qa.id = ?", filter.ID)
	if filter.StudentID != "" {
		w.add("qa.student_id = ?", filter.StudentID)
	}
	return repo.getAttempt(ctx, repo.getExec(exec), w)
}

func (repo quizRepository) GetInProgressAttempt(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	var w where
	w.add("qa.quiz_id = ?", quizID)
	w.add("qa.student_id = ?", studentID)
	w.add("qa.completed_at IS NULL")
	return repo.getAttempt(ctx, repo.getExec(exec), w)
}

func (repo quizRepository) CountAttempts(ctx context.Context, quizID string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &n, q, quizID); err != nil {
		return 0, errors.Wrap(err, "counting attempts")
	}
	return n, nil
}

func (repo quizRepository) CountCompletedAttempts(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2 AND completed_at IS NOT NULL"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &n, q, quizID, studentID); err != nil {
		return 0, errors.Wrap(err, "counting completed attempts")
	}
	return n, nil
}

func (repo quizRepository) MarkAttemptCompleted(ctx context.Context, att quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	q := `UPDATE quiz_attempts SET completed_at = :completed_at, score = :score, total_points = :total_points
		WHERE id = :id AND completed_at IS NULL`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, att)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "completing attempt")
	}
	if err = rowsAffected(res, quiz.ErrAttemptCompleted); err != nil {
		return quiz.Attempt{}, err
	}
	return att, nil
}

func (repo quizRepository) CreateAnswers(ctx context.Context, answers []quiz.Answer, exec ...core.DBExecutor) error {
	if len(answers) == 0 {
		return nil
	}
	q := `INSERT INTO quiz_answers (attempt_id, question_id, selected_answer, is_correct)
		VALUES (:attempt_id, :question_id, :selected_answer, :is_correct)
		ON CONFLICT (attempt_id, question_id) DO NOTHING`
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, answers)
	return errors.Wrap(err, "inserting answers")
}

func (repo quizRepository) QueryAnswers(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]quiz.Answer, error) {
	answers := []quiz.Answer{}
	q := `SELECT an.attempt_id, an.question_id, an.selected_answer, an.is_correct
		FROM quiz_answers an JOIN quiz_questions qn ON qn.id = an.question_id
		WHERE an.attempt_id = $1 ORDER BY qn.position ASC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &answers, q, attemptID); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	return answers, nil
}

func (repo quizRepository) QueryAttempts(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) ([]quiz.Attempt, error) {
	exe := repo.getExec(exec)
	var w where
	w.add("qa.quiz_id = ?", quizID)
	if studentID != "" {
		w.add("qa.student_id = ?", studentID)
	}

	attempts := []quiz.Attempt{}
	q := exe.Rebind(attemptSelect + w.String() + " ORDER BY qa.started_at DESC")
	if err := sqlx.SelectContext(ctx, exe, &attempts, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	return attempts, nil
}

func (repo quizRepository) QueryInProgressAttempts(ctx context.Context, exec ...core.DBExecutor) ([]quiz.StaleAttempt, error) {
	var stale []quiz.StaleAttempt
	q := `SELECT qa.id, qa.quiz_id, qa.student_id, qa.started_at, qa.completed_at, qa.score, qa.total_points,
		qz.time_limit
		FROM quiz_attempts qa JOIN quizzes qz ON qz.id = qa.quiz_id
		WHERE qa.completed_at IS NULL ORDER BY qa.started_at ASC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &stale, q); err != nil {
		return nil, errors.Wrap(err, "querying attempts in progress")
	}
	return stale, nil
}
