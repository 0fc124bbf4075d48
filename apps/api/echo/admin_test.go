package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

func Test_adminApi_queryUsers(t *testing.T) {
	ts := setup(t)
	now := time.Now()

	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved, now)
	alice := ts.CreateUser(t, "Alice", "alice@example.com", user.RoleTeacher, user.StatusPending, now.Add(1*time.Hour))
	bob := ts.CreateUser(t, "Bob", "bob@example.com", user.RoleTeacher, user.StatusApproved, now.Add(2*time.Hour))
	carl := ts.CreateUser(t, "Carl", "carl@school.org", user.RoleTeacher, user.StatusPending, now.Add(3*time.Hour))
	dora := ts.CreateUser(t, "Dora", "dora@example.com", user.RoleStudent, user.StatusApproved, now.Add(4*time.Hour))

	adminToken := ts.getToken(t, admin)
	path := func(search, ordering string, roles, statuses []string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		for _, s := range statuses {
			v.Add("status", s)
		}
		return "/v1/admin/users?" + v.Encode()
	}
	teachers := []string{user.RoleTeacher}

	tests := []httpTest{
		{name: "auth required", path: "/v1/admin/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/admin/users", token: ts.getToken(t, bob),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "all, newest first", path: "/v1/admin/users", token: adminToken, wantData: marchallList(t, dora, carl, bob, alice, admin)},
		{
			name: "pending teachers", path: path("", "", teachers, []string{user.StatusPending}),
			token: adminToken, wantData: marchallList(t, carl, alice),
		},
		{
			name: "teachers by name", path: path("", "full_name", teachers, nil),
			token: adminToken, wantData: marchallList(t, alice, bob, carl),
		},
		{
			name: "oldest first", path: path("", "created_at", teachers, nil),
			token: adminToken, wantData: marchallList(t, alice, bob, carl),
		},
		{name: "search", path: path("SCHOOL", "", nil, nil), token: adminToken, wantData: marchallList(t, carl)},
		{name: "no match", path: path("nobody", "", nil, nil), token: adminToken, wantData: marchallList(t)},
	}
	ts.runTests(t, tests)
}

func Test_adminApi_teacherWorkflow(t *testing.T) {
	ts := setup(t)
	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := ts.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusPending)
	other := ts.CreateUser(t, "Other", "other@example.com", user.RoleTeacher, user.StatusPending)
	student := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	token := ts.getToken(t, admin)

	post := func(path string, body ...[]byte) *user.User {
		t.Helper()
		rec := ts.do(newAuthRequest(http.MethodPost, path, token, body...))
		if rec.Code != http.StatusOK {
			t.Logf("%s: %d %s", path, rec.Code, rec.Body.String())
			return nil
		}
		var usr user.User
		decode(t, rec, &usr)
		return &usr
	}
	tpath := func(id, action string) string { return "/v1/admin/teachers/" + id + "/" + action }

	// verification record only exists once reviewed
	rec := ts.do(newAuthRequest(http.MethodGet, tpath(teacher.ID, "verification"), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	approved := post(tpath(teacher.ID, "approve"))
	require.NotNil(t, approved)
	assert.Equal(t, user.StatusApproved, approved.Status)
	assert.Equal(t, admin.ID, approved.VerifiedBy)
	assert.NotNil(t, approved.VerifiedAt)

	rec = ts.do(newAuthRequest(http.MethodGet, tpath(teacher.ID, "verification"), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vr user.VerificationRecord
	decode(t, rec, &vr)
	assert.Equal(t, user.StatusApproved, vr.Status)
	assert.Equal(t, admin.ID, vr.ReviewedBy)

	// approve twice
	rec = ts.do(newAuthRequest(http.MethodPost, tpath(teacher.ID, "approve"), token))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "cannot approve a teacher account that is approved"}),
	}, rec)

	suspended := post(tpath(teacher.ID, "suspend"))
	require.NotNil(t, suspended)
	assert.Equal(t, user.StatusSuspended, suspended.Status)

	unsuspended := post(tpath(teacher.ID, "unsuspend"))
	require.NotNil(t, unsuspended)
	assert.Equal(t, user.StatusApproved, unsuspended.Status)

	rejected := post(tpath(other.ID, "reject"), marchallObj(t, user.RejectTeacher{Reason: "  missing diploma "}))
	require.NotNil(t, rejected)
	assert.Equal(t, user.StatusRejected, rejected.Status)
	vr, err := ts.Users.GetVerification(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, "missing diploma", vr.Reason)

	templates := make([]string, 0, 3)
	for _, msg := range ts.Mail.Sent() {
		templates = append(templates, msg.TemplateName)
	}
	assert.Equal(t, []string{"teacher_approved", "teacher_suspended", "teacher_rejected"}, templates)

	// students are not teachers
	rec = ts.do(newAuthRequest(http.MethodPost, tpath(student.ID, "approve"), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_adminApi_destroyUser(t *testing.T) {
	ts := setup(t)
	admin := ts.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := ts.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusApproved)
	student := ts.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	ts.CreateCourse(t, teacher, "Algebra", student)
	token := ts.getToken(t, admin)

	tests := []httpTest{
		{
			name: "not by a teacher", method: http.MethodDelete, path: "/v1/admin/users/" + student.ID,
			token: ts.getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "not yourself", method: http.MethodDelete, path: "/v1/admin/users/" + admin.ID, token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "you cannot delete your own account"}),
		},
		{
			name: "unknown", method: http.MethodDelete, path: "/v1/admin/users/nope", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{name: "teacher", method: http.MethodDelete, path: "/v1/admin/users/" + teacher.ID, token: token, wantCode: http.StatusNoContent},
	}
	ts.runTests(t, tests)

	// the teacher's course went with them
	rec := ts.do(newAuthRequest(http.MethodGet, "/v1/courses", ts.getToken(t, student)))
	checkCodeAndData(t, httpTest{wantData: marchallList(t)}, rec)
}
