package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/ElabeidiTech/LearnHub-sub000/apps/api/echo"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	"github.com/ElabeidiTech/LearnHub-sub000/testutil"
)

type loginResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func Test_userApi_register(t *testing.T) {
	ts := setup(t)
	ts.CreateUser(t, "Taken", "taken@example.com", user.RoleStudent, user.StatusApproved)

	newUser := func(name, email, role string) user.NewUser {
		return user.NewUser{
			FullName:        name,
			Email:           email,
			Role:            role,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
		}
	}
	mismatch := newUser("Jane Doe", "jane@example.com", user.RoleStudent)
	mismatch.PasswordConfirm = "Other-Pa55w0rd"
	weak := newUser("Jane Doe", "jane@example.com", user.RoleStudent)
	weak.Password, weak.PasswordConfirm = "short", "short"

	tests := []struct {
		name       string
		data       user.NewUser
		wantCode   int
		wantStatus string
		wantFields []string
	}{
		{name: "student", data: newUser("Jane Doe", " Jane@Example.com ", user.RoleStudent), wantCode: http.StatusCreated, wantStatus: user.StatusApproved},
		{name: "teacher", data: newUser("John Smith", "john@example.com", user.RoleTeacher), wantCode: http.StatusCreated, wantStatus: user.StatusPending},
		{name: "admin refused", data: newUser("Eve", "eve@example.com", user.RoleAdmin), wantCode: http.StatusBadRequest, wantFields: []string{"role"}},
		{name: "email taken", data: newUser("Copy Cat", "TAKEN@example.com", user.RoleStudent), wantCode: http.StatusBadRequest, wantFields: []string{"email"}},
		{name: "confirm mismatch", data: mismatch, wantCode: http.StatusBadRequest, wantFields: []string{"password_confirm"}},
		{name: "weak password", data: weak, wantCode: http.StatusBadRequest, wantFields: []string{"password"}},
		{name: "blank", data: user.NewUser{}, wantCode: http.StatusBadRequest, wantFields: []string{"full_name", "email", "role", "password"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(newRequest(http.MethodPost, "/v1/users/register", marchallObj(t, tc.data)))
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())

			if tc.wantCode != http.StatusCreated {
				var fields map[string]string
				decode(t, rec, &fields)
				for _, f := range tc.wantFields {
					assert.Contains(t, fields, f)
				}
				return
			}
			var usr user.User
			decode(t, rec, &usr)
			assert.NotEmpty(t, usr.ID)
			assert.Equal(t, tc.wantStatus, usr.Status)
			assert.Equal(t, tc.data.Role, usr.Role)
		})
	}

	t.Run("email is stored lowercase", func(t *testing.T) {
		usr, err := ts.Users.GetByEmail(context.Background(), "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", usr.Email)
	})
}

func Test_userApi_login(t *testing.T) {
	ts := setup(t)
	ctx := context.Background()
	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	pending := ts.CreateUser(t, "Pending", "pending@example.com", user.RoleTeacher, user.StatusPending)
	rejected := ts.CreateUser(t, "Rejected", "rejected@example.com", user.RoleTeacher, user.StatusPending)
	suspended := ts.CreateUser(t, "Suspended", "suspended@example.com", user.RoleTeacher, user.StatusPending)

	_, err := ts.Users.RejectTeacher(ctx, admin.Identity(), rejected.ID, user.RejectTeacher{Reason: "no credentials"})
	require.NoError(t, err)
	_, err = ts.Users.ApproveTeacher(ctx, admin.Identity(), suspended.ID)
	require.NoError(t, err)
	_, err = ts.Users.SuspendTeacher(ctx, admin.Identity(), suspended.ID)
	require.NoError(t, err)

	creds := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}
	tests := []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/v1/users/login", body: creds("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/users/login", body: creds("nobody@example.com", testutil.Password),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid email or password"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: creds("student@example.com", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid email or password"}),
		},
		{
			name: "rejected", method: http.MethodPost, path: "/v1/users/login", body: creds("rejected@example.com", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "your teacher application was rejected"}),
		},
		{
			name: "suspended", method: http.MethodPost, path: "/v1/users/login", body: creds("suspended@example.com", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "your account has been suspended"}),
		},
	}
	ts.runTests(t, tests)

	t.Run("student", func(t *testing.T) {
		rec := ts.do(newRequest(http.MethodPost, "/v1/users/login", creds(" Student@Example.com", testutil.Password)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp loginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "student@example.com", resp.User.Email)
		assert.False(t, resp.User.LastLogin.IsZero())

		rec = ts.do(newAuthRequest(http.MethodGet, "/v1/courses", resp.Token))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("pending teacher only sees their pending state", func(t *testing.T) {
		rec := ts.do(newRequest(http.MethodPost, "/v1/users/login", creds(pending.Email, testutil.Password)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp loginResponse
		decode(t, rec, &resp)
		assert.Equal(t, user.StatusPending, resp.User.Status)

		rec = ts.do(newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(newAuthRequest(http.MethodGet, "/v1/courses", resp.Token))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "your teacher account is pending admin approval"}),
		}, rec)
	})
}

func Test_userApi_identity(t *testing.T) {
	ts := setup(t)
	ctx := context.Background()
	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := ts.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusApproved)
	gone := ts.CreateUser(t, "Gone", "gone@example.com", user.RoleStudent, user.StatusApproved)

	teacherToken, goneToken := ts.getToken(t, teacher), ts.getToken(t, gone)
	_, err := ts.Users.SuspendTeacher(ctx, admin.Identity(), teacher.ID)
	require.NoError(t, err)
	require.NoError(t, ts.Users.Delete(ctx, admin.Identity(), gone.ID))

	tests := []httpTest{
		{name: "no token", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "bad token", path: "/v1/users/me", token: "not.a.token",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "suspended after sign in", path: "/v1/users/me", token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "your account has been suspended"}),
		},
		{
			name: "deleted after sign in", path: "/v1/users/me", token: goneToken,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	ts.runTests(t, tests)
}

func Test_userApi_me(t *testing.T) {
	ts := setup(t)
	usr := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	token := ts.getToken(t, usr)

	rec := ts.do(newAuthRequest(http.MethodGet, "/v1/users/me", token))
	checkCodeAndData(t, httpTest{wantData: marchallObj(t, usr)}, rec)

	bio := "  I like maths  "
	rec = ts.do(newAuthRequest(http.MethodPut, "/v1/users/me", token, marchallObj(t, user.UpdateProfile{FullName: "Stu Dent", Bio: &bio})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got user.User
	decode(t, rec, &got)
	assert.Equal(t, "Stu Dent", got.FullName)
	assert.Equal(t, "I like maths", got.Bio)
	assert.Equal(t, usr.Email, got.Email)

	rec = ts.do(newAuthRequest(http.MethodPut, "/v1/users/me", token, marchallObj(t, user.UpdateProfile{Password: "Brand-N3w-Pwd!"})))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "password_confirm")
}

func Test_userApi_destroyMe(t *testing.T) {
	ts := setup(t)
	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := ts.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusApproved)
	other := ts.CreateUser(t, "Other", "other@example.com", user.RoleTeacher, user.StatusApproved)
	student := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	crs := ts.CreateCourse(t, teacher, "Maths", student)
	otherCrs := ts.CreateCourse(t, other, "Physics", student)
	token := ts.getToken(t, teacher)

	confirm := func(pwd string) []byte { return marchallObj(t, user.DeleteAccount{Password: pwd}) }
	tests := []httpTest{
		{
			name: "password required", method: http.MethodDelete, path: "/v1/users/me", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "this field is required"}),
		},
		{
			name: "wrong password", method: http.MethodDelete, path: "/v1/users/me", token: token, body: confirm("nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "invalid password"}),
		},
		{
			name: "admins cannot", method: http.MethodDelete, path: "/v1/users/me", token: ts.getToken(t, admin), body: confirm(testutil.Password),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "admin accounts are removed by another admin"}),
		},
		{name: "teacher", method: http.MethodDelete, path: "/v1/users/me", token: token, body: confirm(testutil.Password), wantCode: http.StatusNoContent},
		{
			name: "token of a deleted account", method: http.MethodGet, path: "/v1/users/me", token: token,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	ts.runTests(t, tests)

	ctx := context.Background()
	_, err := ts.Courses.Get(ctx, admin.Identity(), crs.ID)
	assert.Error(t, err)
	_, err = ts.Courses.Get(ctx, other.Identity(), otherCrs.ID)
	assert.NoError(t, err)
	_, err = ts.UserRepo.GetUser(ctx, user.GetFilter{ID: student.ID})
	assert.NoError(t, err)
}

func Test_userApi_refreshToken(t *testing.T) {
	ts := setup(t)
	usr := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)

	rec := ts.do(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", ts.getToken(t, usr)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, resp.User.ID)

	// refresh window elapsed
	old := time.Now().Add(-ts.Conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()
	token, err := echoapi.GenerateToken(ts.Conf, echoapi.NewClaims(ts.Conf, usr, old))
	require.NoError(t, err)
	rec = ts.do(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})}, rec)
}

func Test_userApi_passwordReset(t *testing.T) {
	ts := setup(t)
	usr := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)

	body := func(email string) []byte { return marchallObj(t, echoapi.PasswordResetRequest{Email: email}) }

	rec := ts.do(newRequest(http.MethodPost, "/v1/users/password-reset", body("nobody@example.com")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.Mail.Sent(), "no mail for unknown addresses")

	rec = ts.do(newRequest(http.MethodPost, "/v1/users/password-reset", body(usr.Email)))
	require.Equal(t, http.StatusOK, rec.Code)
	sent := ts.Mail.Sent()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]string)

	newPwd := "Brand-N3w-Pwd!"
	confirm := func(token string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: data["UID"], Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}
	rec = ts.do(newRequest(http.MethodPost, "/v1/users/password-reset-confirm", confirm("bogus-token")))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = ts.do(newRequest(http.MethodPost, "/v1/users/password-reset-confirm", confirm(data["Token"])))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: newPwd})))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// tokens are single use: the password hash they were derived from changed
	rec = ts.do(newRequest(http.MethodPost, "/v1/users/password-reset-confirm", confirm(data["Token"])))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
