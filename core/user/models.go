package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Account statuses. Only teachers go through the approval workflow; students & admins are created approved.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusSuspended = "suspended"
)

var (
	AllRoles    = []string{RoleAdmin, RoleTeacher, RoleStudent}
	AllStatuses = []string{StatusPending, StatusApproved, StatusRejected, StatusSuspended}
)

type User struct {
	ID           string     `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	Phone        string     `json:"phone,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	PasswordHash []byte     `json:"-"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"` // UTC
	VerifiedBy   string     `json:"verified_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    time.Time  `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool  { return u.Role == RoleTeacher }
func (u User) IsStudent() bool  { return u.Role == RoleStudent }
func (u User) IsApproved() bool { return u.Status == StatusApproved }

// Identity returns the request-scoped view of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role, Status: u.Status}
}

// Identity is who is acting on a request. Services take it explicitly instead of reading globals.
type Identity struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (id Identity) IsAdmin() bool    { return id.Role == RoleAdmin }
func (id Identity) IsTeacher() bool  { return id.Role == RoleTeacher }
func (id Identity) IsStudent() bool  { return id.Role == RoleStudent }
func (id Identity) IsApproved() bool { return id.Status == StatusApproved }

// IsActiveTeacher reports whether the identity may author course content.
func (id Identity) IsActiveTeacher() bool { return id.IsTeacher() && id.IsApproved() }

// VerificationRecord keeps the outcome of an admin review of a teacher account.
type VerificationRecord struct {
	TeacherID  string    `json:"teacher_id" db:"teacher_id"`
	Status     string    `json:"status" db:"status"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	ReviewedBy string    `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at" db:"reviewed_at"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	FullName        string `json:"full_name" form:"full_name" validate:"required,notblank"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Role            string `json:"role" form:"role" validate:"required,role"`
	Phone           string `json:"phone" form:"phone" validate:"omitempty,max=32"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateProfile defines what a User may change on their own account.
type UpdateProfile struct {
	FullName        string  `json:"full_name" form:"full_name"`
	Phone           *string `json:"phone" form:"phone" validate:"omitempty,max=32"`
	Bio             *string `json:"bio" form:"bio" validate:"omitempty,max=2000"`
	Password        string  `json:"password" form:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" form:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	email string // for the password policy
}

func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate) error {
	name := core.CleanString(up.FullName)
	if name != "" {
		up.FullName = name
	} else {
		up.FullName = origUsr.FullName
	}
	if up.Phone != nil {
		phone := core.CleanString(*up.Phone)
		up.Phone = &phone
	}
	up.email = origUsr.Email
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// RejectTeacher carries the admin's reason for turning an application down.
type RejectTeacher struct {
	Reason string `json:"reason" form:"reason" validate:"omitempty,max=2000"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	Statuses    []string  `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Statuses == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// DeleteAccount confirms the removal of one's own account.
type DeleteAccount struct {
	Password string `json:"password" form:"password" validate:"required"`
}

func (da *DeleteAccount) Validate(validate *validator.Validate) error {
	return validate.Struct(da)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID    string
	Email string
}
