package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user not found")
	ErrVerificationNotFound = core.NewNotFoundError("no verification record for this teacher")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountRejected      = errors.New("your teacher application was rejected")
	ErrAccountSuspended     = errors.New("your account has been suspended")
	errCannotDeleteSelf     = core.NewConflictError("you cannot delete your own account")
	errAdminSelfDelete      = core.NewConflictError("admin accounts are removed by another admin")
	errWrongPassword        = core.NewValidationError(nil, core.FieldError{Field: "password", Error: "invalid password"})
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SaveVerification(ctx context.Context, rec VerificationRecord, exec ...core.DBExecutor) error
		GetVerification(ctx context.Context, teacherID string, exec ...core.DBExecutor) (VerificationRecord, error)
		// DeleteUser removes the user row and everything hanging off it: courses they own (with their enrollments,
		// assignments, submissions, quizzes, attempts & materials) and their own enrollments, submissions & attempts.
		// It returns the storage paths referenced by the removed rows.
		DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error)
	}

	ServiceInterface interface {
		CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		ApproveTeacher(ctx context.Context, admin Identity, teacherID string) (User, error)
		RejectTeacher(ctx context.Context, admin Identity, teacherID string, data RejectTeacher) (User, error)
		SuspendTeacher(ctx context.Context, admin Identity, teacherID string) (User, error)
		UnsuspendTeacher(ctx context.Context, admin Identity, teacherID string) (User, error)
		GetVerification(ctx context.Context, teacherID string) (VerificationRecord, error)
		Delete(ctx context.Context, admin Identity, id string) error
		DeleteAccount(ctx context.Context, usr User, da DeleteAccount) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		files   core.FileStorage
		conf    *core.Config
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	mailSvc core.EmailService,
	files core.FileStorage,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		tx:      tx,
		repo:    repo,
		mailSvc: mailSvc,
		files:   files,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register creates a student (approved right away) or a teacher (pending admin approval).
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		FullName:  nu.FullName,
		Email:     nu.Email,
		Role:      nu.Role,
		Status:    StatusApproved,
		Phone:     nu.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.IsTeacher() {
		usr.Status = StatusPending
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if core.IsConflict(err) {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// Authenticate checks credentials and refuses rejected and suspended accounts.
// Pending teachers may sign in; their portal stays gated until approval.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	switch usr.Status {
	case StatusRejected:
		return User{}, ErrAccountRejected
	case StatusSuspended:
		return User{}, ErrAccountSuspended
	}

	usr.LastLogin = core.Now()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.FullName = up.FullName
	if up.Phone != nil {
		usr.Phone = *up.Phone
	}
	if up.Bio != nil {
		usr.Bio = *up.Bio
	}
	if up.Password != "" {
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// getTeacher only ever resolves teacher accounts; anything else is reported as not found.
func (svc *Service) getTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec...)
	if err != nil {
		return User{}, err
	}
	if !usr.IsTeacher() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) transition(ctx context.Context, teacherID, action string, from []string, to string) (User, error) {
	usr, err := svc.getTeacher(ctx, teacherID)
	if err != nil {
		return User{}, err
	}
	allowed := false
	for _, st := range from {
		if usr.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return User{}, core.NewConflictError(fmt.Sprintf("cannot %s a teacher account that is %s", action, usr.Status))
	}
	usr.Status = to
	usr.UpdatedAt = core.Now()
	return usr, nil
}

func (svc *Service) ApproveTeacher(ctx context.Context, admin Identity, teacherID string) (User, error) {
	usr, err := svc.transition(ctx, teacherID, "approve", []string{StatusPending}, StatusApproved)
	if err != nil {
		return User{}, err
	}
	now := usr.UpdatedAt
	usr.VerifiedAt = &now
	usr.VerifiedBy = admin.ID
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "approving teacher")
	}
	rec := VerificationRecord{TeacherID: usr.ID, Status: StatusApproved, ReviewedBy: admin.ID, ReviewedAt: now}
	if err = svc.repo.SaveVerification(ctx, rec); err != nil {
		svc.logger.Warn("saving verification record", err)
	}
	svc.notify(usr, "Your teacher account has been approved", "teacher_approved", nil)
	return usr, nil
}

func (svc *Service) RejectTeacher(ctx context.Context, admin Identity, teacherID string, data RejectTeacher) (User, error) {
	usr, err := svc.transition(ctx, teacherID, "reject", []string{StatusPending}, StatusRejected)
	if err != nil {
		return User{}, err
	}
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "rejecting teacher")
	}
	reason := core.CleanString(data.Reason)
	rec := VerificationRecord{TeacherID: usr.ID, Status: StatusRejected, Reason: reason, ReviewedBy: admin.ID, ReviewedAt: usr.UpdatedAt}
	if err = svc.repo.SaveVerification(ctx, rec); err != nil {
		svc.logger.Warn("saving verification record", err)
	}
	svc.notify(usr, "Your teacher application was not approved", "teacher_rejected", map[string]string{"Reason": reason})
	return usr, nil
}

func (svc *Service) SuspendTeacher(ctx context.Context, admin Identity, teacherID string) (User, error) {
	usr, err := svc.transition(ctx, teacherID, "suspend", []string{StatusApproved}, StatusSuspended)
	if err != nil {
		return User{}, err
	}
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "suspending teacher")
	}
	svc.notify(usr, "Your teacher account has been suspended", "teacher_suspended", nil)
	return usr, nil
}

func (svc *Service) UnsuspendTeacher(ctx context.Context, admin Identity, teacherID string) (User, error) {
	usr, err := svc.transition(ctx, teacherID, "unsuspend", []string{StatusSuspended}, StatusApproved)
	if err != nil {
		return User{}, err
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "unsuspending teacher")
}

func (svc *Service) GetVerification(ctx context.Context, teacherID string) (VerificationRecord, error) {
	if _, err := svc.getTeacher(ctx, teacherID); err != nil {
		return VerificationRecord{}, err
	}
	return svc.repo.GetVerification(ctx, teacherID)
}

// Delete removes a user and all the content they own in one transaction.
// Stored files are only removed once the transaction has committed.
func (svc *Service) Delete(ctx context.Context, admin Identity, id string) error {
	if admin.ID == id {
		return errCannotDeleteSelf
	}
	return svc.delete(ctx, id)
}

// DeleteAccount removes the user's own account with everything they own, once their password
// is confirmed.
func (svc *Service) DeleteAccount(ctx context.Context, usr User, da DeleteAccount) error {
	if usr.IsAdmin() {
		return errAdminSelfDelete
	}
	if err := usr.CheckPassword(da.Password); err != nil {
		return errWrongPassword
	}
	return svc.delete(ctx, usr.ID)
}

func (svc *Service) delete(ctx context.Context, id string) error {
	var paths []string
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec); err != nil {
			return err
		}
		var err error
		paths, err = svc.repo.DeleteUser(ctx, id, exec)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}

	core.RemoveFiles(ctx, svc.files, svc.logger, paths...)
	return nil
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.Status == StatusRejected || usr.Status == StatusSuspended {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *Service) sendPasswordResetMail(usr User) error {
	token, err := makeToken(usr, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.FullName,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, rp.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "resetting password")
}

func (svc *Service) notify(usr User, subject, tmpl string, data map[string]string) {
	if data == nil {
		data = make(map[string]string, 1)
	}
	data["Name"] = usr.FullName
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}
