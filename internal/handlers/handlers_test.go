package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/repository"
	"github.com/harentsoaR/dentaheal-api/internal/services"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string) error { return nil }

type testAPI struct {
	router    *gin.Engine
	accounts  *repository.MemoryAccounts
	uploadDir string
}

func newTestAPI(t *testing.T, checks map[string]HealthCheck) *testAPI {
	t.Helper()
	authCfg := config.AuthConfig{
		JWTSecret:                "test-secret",
		TokenTTLHours:            168,
		BcryptCost:               bcrypt.MinCost,
		OTPTTLSeconds:            120,
		VerifyIssuesTokenPatient: true,
	}
	accounts := repository.NewMemoryAccounts()
	notifier := services.NewNotificationService(nopMailer{}, nil)
	tokens := utils.NewTokenManager(authCfg.JWTSecret, authCfg.TokenTTL())

	identity := services.NewIdentityService(authCfg, services.IdentityDependencies{
		Accounts: accounts,
		Notifier: notifier,
		Tokens:   tokens,
	})
	ledger := services.NewLedgerService(config.LedgerConfig{EmptyListNotFound: true}, services.LedgerDependencies{
		Appointments: repository.NewMemoryAppointments(),
		Accounts:     accounts,
		Notifier:     notifier,
	})

	uploadDir := t.TempDir()
	h := NewHandler(Dependencies{Identity: identity, Ledger: ledger, UploadDir: uploadDir, Checks: checks})
	router := NewRouter(h, tokens, RouterConfig{AllowOrigins: []string{"http://localhost:3000"}, RequestTimeout: 5 * time.Second})
	return &testAPI{router: router, accounts: accounts, uploadDir: uploadDir}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *testAPI) serve(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (a *testAPI) list(t *testing.T, path, token string) (int, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var out []map[string]any
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (a *testAPI) otp(t *testing.T, email string) string {
	t.Helper()
	acc, err := a.accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, acc.OTP)
	return *acc.OTP
}

// signUp registers, verifies and logs in an account, returning its token and id.
func (a *testAPI) signUp(t *testing.T, kind, email string) (string, string) {
	t.Helper()
	body := map[string]string{
		"username": "Sam " + kind,
		"email":    email,
		"number":   "0123456789",
		"password": "abc12345",
	}
	verifyPath := "/api/user/verify-user"
	if kind == "doctor" {
		body["speciality"] = "Orthodontics"
		verifyPath = "/api/doctor/verify-doctor"
	}

	code, _ := a.do(t, http.MethodPost, "/api/"+kind+"/register", "", body)
	require.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, verifyPath, "", map[string]string{"email": email, "otp": a.otp(t, email)})
	require.Equal(t, http.StatusOK, code)

	code, resp := a.do(t, http.MethodPost, "/api/"+kind+"/login", "", map[string]string{"email": email, "password": "abc12345"})
	require.Equal(t, http.StatusOK, code)
	return resp["jwtToken"].(string), resp["id"].(string)
}

func TestRegisterVerifyScenario(t *testing.T) {
	api := newTestAPI(t, nil)

	code, resp := api.do(t, http.MethodPost, "/api/user/register", "", map[string]string{
		"username": "Alice", "email": "a@x.com", "number": "0123456789", "password": "abc12345",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "User registered successfully. OTP sent to email.", resp["message"])

	otp := api.otp(t, "a@x.com")
	code, resp = api.do(t, http.MethodPost, "/api/user/verify-user", "", map[string]string{"email": "a@x.com", "otp": otp})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp["token"])

	code, resp = api.do(t, http.MethodPost, "/api/user/verify-user", "", map[string]string{"email": "a@x.com", "otp": otp})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CODE", resp["code"])
}

func TestRegisterRejectsInvalidFields(t *testing.T) {
	api := newTestAPI(t, nil)

	code, resp := api.do(t, http.MethodPost, "/api/doctor/register", "", map[string]string{
		"username": "Al", "email": "nope", "number": "12", "password": "abc12345",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp["code"])
	details, ok := resp["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "username")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "number")
	assert.Contains(t, details, "speciality")

	code, resp = api.do(t, http.MethodPost, "/api/user/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp["code"])
}

func TestLoginFailuresLookAlike(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signUp(t, "user", "a@x.com")

	unknownCode, unknown := api.do(t, http.MethodPost, "/api/user/login", "", map[string]string{"email": "b@x.com", "password": "abc12345"})
	wrongCode, wrong := api.do(t, http.MethodPost, "/api/user/login", "", map[string]string{"email": "a@x.com", "password": "abc99999"})

	assert.Equal(t, http.StatusBadRequest, unknownCode)
	assert.Equal(t, unknownCode, wrongCode)
	assert.Equal(t, unknown, wrong)
	assert.Equal(t, "Invalid email or password", unknown["error"])
}

func TestPurgeBeforeExpiryIsRefused(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodPost, "/api/user/register", "", map[string]string{
		"username": "Alice", "email": "a@x.com", "number": "0123456789", "password": "abc12345",
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp := api.do(t, http.MethodDelete, "/api/user/users/a@x.com", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NOT_ELIGIBLE", resp["code"])

	code, _ = api.do(t, http.MethodDelete, "/api/user/users/b@x.com", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPurgeRouteOnlySeesItsOwnRole(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodPost, "/api/doctor/register", "", map[string]string{
		"username": "Dr Who", "email": "doc@x.com", "number": "0123456789", "password": "abc12345", "speciality": "Endodontics",
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp := api.do(t, http.MethodDelete, "/api/user/users/doc@x.com", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp["code"])

	code, resp = api.do(t, http.MethodDelete, "/api/doctor/doctors/doc@x.com", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NOT_ELIGIBLE", resp["code"])
}

func TestAppointmentLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	patientToken, _ := api.signUp(t, "user", "a@x.com")
	doctorToken, doctorID := api.signUp(t, "doctor", "doc@x.com")

	code, _ := api.list(t, "/api/user/appointments", patientToken)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := api.do(t, http.MethodPost, "/api/user/book-appointment", patientToken, map[string]string{
		"doctorId": doctorID, "problem": "toothache",
	})
	require.Equal(t, http.StatusCreated, code)
	apt := resp["appointment"].(map[string]any)
	assert.Equal(t, "pending", apt["status"])
	assert.Equal(t, []any{}, apt["cures"])
	aptID := apt["_id"].(string)

	code, views := api.list(t, "/api/user/appointments", patientToken)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, views, 1)
	assert.Equal(t, "Sam doctor", views[0]["doctor"].(map[string]any)["name"])
	assert.Equal(t, "Orthodontics", views[0]["doctor"].(map[string]any)["speciality"])

	code, views = api.list(t, "/api/doctor/appointments", doctorToken)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, views, 1)
	assert.Equal(t, "a@x.com", views[0]["user"].(map[string]any)["email"])

	code, _ = api.do(t, http.MethodPatch, "/api/doctor/appointments/"+aptID+"/confirm", doctorToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(t, http.MethodPost, "/api/doctor/appointments/"+aptID+"/add-cure", doctorToken,
		map[string]string{"description": "filling"})
	require.Equal(t, http.StatusOK, code)
	apt = resp["appointment"].(map[string]any)
	assert.Equal(t, "completed", apt["status"])
	require.Len(t, apt["cures"], 1)

	code, resp = api.do(t, http.MethodPatch, "/api/user/appointments/"+aptID+"/cancel", patientToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", resp["code"])
}

func TestBookWithoutDoctorIsRejected(t *testing.T) {
	api := newTestAPI(t, nil)
	patientToken, _ := api.signUp(t, "user", "a@x.com")

	code, resp := api.do(t, http.MethodPost, "/api/user/book-appointment", patientToken, map[string]string{"problem": "toothache"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp["code"])
}

func TestRoutesEnforceAuthAndRole(t *testing.T) {
	api := newTestAPI(t, nil)
	patientToken, _ := api.signUp(t, "user", "a@x.com")

	code, resp := api.do(t, http.MethodGet, "/api/user/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", resp["code"])

	code, resp = api.do(t, http.MethodGet, "/api/doctor/appointments", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", resp["code"])

	code, resp = api.do(t, http.MethodGet, "/api/me", patientToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a@x.com", resp["email"])
	assert.NotContains(t, resp, "password")
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signUp(t, "user", "a@x.com")

	code, resp := api.do(t, http.MethodPut, "/api/me", token, map[string]string{"number": "9999999999"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "9999999999", resp["user"].(map[string]any)["phoneNumber"])

	code, resp = api.do(t, http.MethodPut, "/api/me", token, map[string]string{"number": "12"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp["code"])
}

func TestAddCureWithImageUpload(t *testing.T) {
	api := newTestAPI(t, nil)
	patientToken, _ := api.signUp(t, "user", "a@x.com")
	doctorToken, doctorID := api.signUp(t, "doctor", "doc@x.com")

	_, resp := api.do(t, http.MethodPost, "/api/user/book-appointment", patientToken, map[string]string{
		"doctorId": doctorID, "problem": "toothache",
	})
	aptID := resp["appointment"].(map[string]any)["_id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "x-ray reviewed"))
	part, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/doctor/appointments/"+aptID+"/add-cure", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+doctorToken)
	code, resp := api.serve(t, req)
	require.Equal(t, http.StatusOK, code)

	cures := resp["appointment"].(map[string]any)["cures"].([]any)
	require.Len(t, cures, 1)
	image := cures[0].(map[string]any)["image"].(string)
	assert.True(t, strings.HasPrefix(image, "/uploads/"))
	assert.True(t, strings.HasSuffix(image, ".png"))

	_, err = os.Stat(filepath.Join(api.uploadDir, strings.TrimPrefix(image, "/uploads/")))
	assert.NoError(t, err)

	code, _ = api.serve(t, httptest.NewRequest(http.MethodGet, image, nil))
	assert.Equal(t, http.StatusOK, code)
}

func TestListDentistsIsPublic(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signUp(t, "doctor", "doc@x.com")

	req := httptest.NewRequest(http.MethodGet, "/api/doctor/get-all-dentists", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doctors []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "Orthodontics", doctors[0]["speciality"])
}

func TestReadiness(t *testing.T) {
	api := newTestAPI(t, map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
	})
	code, resp := api.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp["status"])

	api = newTestAPI(t, map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, resp = api.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", resp["details"].(map[string]any)["redis"])
}
