package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

const userColumns = `id, full_name, email, role, status, phone, bio, password_hash, verified_at, verified_by,
	created_at, updated_at, last_login`

var userOrderings = map[string]bool{
	"full_name":  true,
	"email":      true,
	"role":       true,
	"status":     true,
	"created_at": true,
	"last_login": true,
}

type userRow struct {
	ID           string      `db:"id"`
	FullName     string      `db:"full_name"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	Status       string      `db:"status"`
	Phone        string      `db:"phone"`
	Bio          string      `db:"bio"`
	PasswordHash []byte      `db:"password_hash"`
	VerifiedAt   null.Time   `db:"verified_at"`
	VerifiedBy   null.String `db:"verified_by"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		FullName:     usr.FullName,
		Email:        usr.Email,
		Role:         usr.Role,
		Status:       usr.Status,
		Phone:        usr.Phone,
		Bio:          usr.Bio,
		PasswordHash: usr.PasswordHash,
		VerifiedAt:   null.TimeFromPtr(usr.VerifiedAt),
		VerifiedBy:   null.NewString(usr.VerifiedBy, usr.VerifiedBy != ""),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		FullName:     row.FullName,
		Email:        row.Email,
		Role:         row.Role,
		Status:       row.Status,
		Phone:        row.Phone,
		Bio:          row.Bio,
		PasswordHash: row.PasswordHash,
		VerifiedBy:   row.VerifiedBy.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
	if row.VerifiedAt.Valid {
		t := row.VerifiedAt.Time.UTC()
		usr.VerifiedAt = &t
	}
	return usr
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := "SELECT EXISTS (SELECT 1 FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	q += ")"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var exists bool
	if err = sqlx.GetContext(ctx, exe, &exists, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :full_name, :email, :role, :status, :phone, :bio,
		:password_hash, :verified_at, :verified_by, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr)); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError(user.ErrEmailExists.Error())
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	exe := repo.getExec(exec)
	var w where

	if filter != nil {
		// users with FullName or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(full_name ILIKE ? OR email ILIKE ?)", val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", filter.Roles)
		}
		if len(filter.Statuses) > 0 {
			w.add("status IN (?)", filter.Statuses)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if userOrderings[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	orderList = append(orderList, "created_at DESC")

	q, args, err := sqlx.In("SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY "+strings.Join(orderList, ", "), w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind("SELECT "+userColumns+" FROM users"+w.String()), w.args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `UPDATE users SET full_name = :full_name, email = :email, role = :role, status = :status, phone = :phone,
		bio = :bio, password_hash = :password_hash, verified_at = :verified_at, verified_by = :verified_by,
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError(user.ErrEmailExists.Error())
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = rowsAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

type verificationRow struct {
	TeacherID  string      `db:"teacher_id"`
	Status     string      `db:"status"`
	Reason     string      `db:"reason"`
	ReviewedBy null.String `db:"reviewed_by"`
	ReviewedAt time.Time   `db:"reviewed_at"`
}

func (repo userRepository) SaveVerification(ctx context.Context, rec user.VerificationRecord, exec ...core.DBExecutor) error {
	q := `INSERT INTO verification_records (teacher_id, status, reason, reviewed_by, reviewed_at)
		VALUES (:teacher_id, :status, :reason, :reviewed_by, :reviewed_at)
		ON CONFLICT (teacher_id) DO UPDATE SET
			status = EXCLUDED.status, reason = EXCLUDED.reason,
			reviewed_by = EXCLUDED.reviewed_by, reviewed_at = EXCLUDED.reviewed_at`
	row := verificationRow{
		TeacherID:  rec.TeacherID,
		Status:     rec.Status,
		Reason:     rec.Reason,
		ReviewedBy: null.NewString(rec.ReviewedBy, rec.ReviewedBy != ""),
		ReviewedAt: rec.ReviewedAt.UTC(),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	return errors.Wrap(err, "saving verification record")
}

func (repo userRepository) GetVerification(ctx context.Context, teacherID string, exec ...core.DBExecutor) (user.VerificationRecord, error) {
	if !validID(teacherID) {
		return user.VerificationRecord{}, user.ErrVerificationNotFound
	}
	exe := repo.getExec(exec)
	var row verificationRow
	q := "SELECT teacher_id, status, reason, reviewed_by, reviewed_at FROM verification_records WHERE teacher_id = ?"
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), teacherID); err != nil {
		if err == sql.ErrNoRows {
			return user.VerificationRecord{}, user.ErrVerificationNotFound
		}
		return user.VerificationRecord{}, errors.Wrap(err, "finding verification record")
	}
	return user.VerificationRecord{
		TeacherID:  row.TeacherID,
		Status:     row.Status,
		Reason:     row.Reason,
		ReviewedBy: row.ReviewedBy.String,
		ReviewedAt: row.ReviewedAt.UTC(),
	}, nil
}

// deletedUserFiles lists the files referenced by the content the user owns: materials, assignment attachments
// and submissions of their courses, plus their own submissions.
const deletedUserFiles = `
	SELECT m.file_path FROM materials m JOIN courses c ON c.id = m.course_id WHERE c.teacher_id = $1
	UNION ALL
	SELECT a.file_path FROM assignments a JOIN courses c ON c.id = a.course_id
		WHERE c.teacher_id = $1 AND a.file_path <> ''
	UNION ALL
	SELECT s.file_path FROM submissions s JOIN assignments a ON a.id = s.assignment_id
		JOIN courses c ON c.id = a.course_id WHERE c.teacher_id = $1
	UNION ALL
	SELECT s.file_path FROM submissions s WHERE s.student_id = $1`

// DeleteUser relies on the ON DELETE CASCADE foreign keys to remove the dependent rows.
func (repo userRepository) DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error) {
	if !validID(id) {
		return nil, user.ErrNotFound
	}
	exe := repo.getExec(exec)

	var paths []string
	if err := sqlx.SelectContext(ctx, exe, &paths, deletedUserFiles, id); err != nil {
		return nil, errors.Wrap(err, "listing user files")
	}
	res, err := exe.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "deleting user")
	}
	if err = rowsAffected(res, user.ErrNotFound); err != nil {
		return nil, err
	}
	return paths, nil
}
