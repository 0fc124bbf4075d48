package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, core.NewConflictError(user.ErrEmailExists.Error())
		}
	}
	usr.ID = newID()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func lessUsers(a, b user.User, field string) (less, equal bool) {
	switch field {
	case "full_name":
		return a.FullName < b.FullName, a.FullName == b.FullName
	case "email":
		return a.Email < b.Email, a.Email == b.Email
	case "role":
		return a.Role < b.Role, a.Role == b.Role
	case "status":
		return a.Status < b.Status, a.Status == b.Status
	case "last_login":
		return a.LastLogin.Before(b.LastLogin), a.LastLogin.Equal(b.LastLogin)
	default: // created_at
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil && !matchUser(u, filter) {
			continue
		}
		users = append(users, u)
	}

	ordering = append(ordering, core.DBOrdering{Field: "created_at"})
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			less, equal := lessUsers(users[i], users[j], ord.Field)
			if equal {
				continue
			}
			if ord.Ascending {
				return less
			}
			return !less
		}
		return false
	})
	return users, nil
}

func contains(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.FullName), search) && !strings.Contains(strings.ToLower(u.Email), search) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !contains(filter.Roles, u.Role) {
		return false
	}
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, u.Status) {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.Email == usr.Email && u.ID != usr.ID {
			return user.User{}, core.NewConflictError(user.ErrEmailExists.Error())
		}
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SaveVerification(_ context.Context, rec user.VerificationRecord, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[rec.TeacherID]; !ok {
		return user.ErrNotFound
	}
	repo.db.verifications[rec.TeacherID] = rec
	return nil
}

func (repo *userRepository) GetVerification(_ context.Context, teacherID string, _ ...core.DBExecutor) (user.VerificationRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.verifications[teacherID]; ok {
		return rec, nil
	}
	return user.VerificationRecord{}, user.ErrVerificationNotFound
}

func (repo *userRepository) DeleteUser(_ context.Context, id string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return nil, user.ErrNotFound
	}

	var paths []string
	for _, crs := range repo.db.courses {
		if crs.TeacherID == id {
			paths = append(paths, repo.db.deleteCourse(crs.ID)...)
		}
	}
	for k := range repo.db.enrollments {
		if k.studentID == id {
			delete(repo.db.enrollments, k)
		}
	}
	for subID, sub := range repo.db.submissions {
		if sub.StudentID == id {
			paths = append(paths, sub.FilePath)
			delete(repo.db.submissions, subID)
		}
	}
	for attID, att := range repo.db.attempts {
		if att.StudentID == id {
			repo.db.deleteAttempt(attID)
		}
	}
	delete(repo.db.verifications, id)
	for tid, rec := range repo.db.verifications {
		if rec.ReviewedBy == id {
			rec.ReviewedBy = ""
			repo.db.verifications[tid] = rec
		}
	}
	for uid, u := range repo.db.users {
		if u.VerifiedBy == id {
			u.VerifiedBy = ""
			repo.db.users[uid] = u
		}
	}
	delete(repo.db.users, id)
	return paths, nil
}
