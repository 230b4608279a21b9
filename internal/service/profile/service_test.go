package profile_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/repository"
	"github.com/oggyb/swipelingo/internal/service/profile"
	"github.com/oggyb/swipelingo/internal/testutil"
)

func TestSyncUser(t *testing.T) {
	ctx := context.Background()
	svc := profile.NewService(testutil.NewAppContext(t))

	u, created, err := svc.SyncUser(ctx, 555, "  Mei ", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Mei", u.Name)

	again, created, err := svc.SyncUser(ctx, 555, "Mei L.", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Mei L.", again.Name)

	_, _, err = svc.SyncUser(ctx, 0, "x", nil)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	_, _, err = svc.SyncUser(ctx, 1, " ", nil)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := profile.NewService(appCtx)
	u := testutil.CreateUser(t, appCtx.DB, "Ola", nil, nil)

	langs := []string{" Polish", "polish", "", "English "}
	teacher := db.RoleTeacher
	got, err := svc.UpdateUser(ctx, u.ID, repository.UserPatch{NativeLanguages: &langs, Role: &teacher})
	require.NoError(t, err)
	assert.Equal(t, []string{"Polish", "English"}, got.NativeLanguages)
	assert.Equal(t, db.RoleTeacher, got.Role)

	_, err = svc.UpdateUser(ctx, u.ID, repository.UserPatch{})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	bad := db.Role("admin")
	_, err = svc.UpdateUser(ctx, u.ID, repository.UserPatch{Role: &bad})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	name := "Ola N."
	_, err = svc.UpdateUser(ctx, 9999, repository.UserPatch{Name: &name})
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	_, err = svc.GetUser(ctx, 9999)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestTeachers(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := profile.NewService(appCtx)
	u := testutil.CreateUser(t, appCtx.DB, "Tom", []string{"English"}, nil)

	_, err := svc.UpsertTeacher(ctx, u.ID, -1, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	_, err = svc.UpsertTeacher(ctx, 777, 10, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	p, err := svc.UpsertTeacher(ctx, u.ID, 25, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, p.HourlyRate)

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RoleTeacher, got.Role)
	require.NotNil(t, got.Teacher)

	lo, hi := 30.0, 20.0
	_, err = svc.ListTeachers(ctx, repository.TeacherFilter{MinRate: &lo, MaxRate: &hi})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	list, err := svc.ListTeachers(ctx, repository.TeacherFilter{Subject: "Japanese"})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestHTTP_Profile(t *testing.T) {
	appCtx := testutil.NewAppContext(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	profile.NewRegistrar(appCtx).RegisterRoutes(r.Group("/api"))

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/users", `{"telegram_id":42,"name":"Lea"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u db.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, db.RoleLearner, u.Role)

	w = do(http.MethodPost, "/api/users", `{"telegram_id":42,"name":"Lea B."}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodPut, fmt.Sprintf("/api/users/%d", u.ID), `{"learning_languages":["Italian"],"timezone":"Europe/Rome"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, []string{"Italian"}, u.LearningLanguages)
	assert.Equal(t, "Lea B.", u.Name)

	w = do(http.MethodPost, "/api/teachers", fmt.Sprintf(`{"user_id":%d,"hourly_rate":18.5,"bio":"Italian grammar"}`, u.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/teachers?max_rate=20&search=grammar", "")
	require.Equal(t, http.StatusOK, w.Code)
	var teachers []db.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &teachers))
	require.Len(t, teachers, 1)
	require.NotNil(t, teachers[0].Teacher)
	assert.Equal(t, 18.5, teachers[0].Teacher.HourlyRate)

	w = do(http.MethodGet, fmt.Sprintf("/api/users/%d", u.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_role":"teacher"`)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/teachers?min_rate=cheap", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/users/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/users/404", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, fmt.Sprintf("/api/users/%d", u.ID), `{}`).Code)
}
