package registry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/config"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Store: config.StoreConfig{Backend: "memory"},
		JWT: config.JWTConfig{
			SecretKey: "test-secret",
			Issuer:    "doctor-registry",
		},
		Monitoring: config.MonitoringConfig{
			Enabled:     false,
			MetricsPath: "/metrics",
			HealthPath:  "/health",
		},
		LogLevel: "error",
	}
}

func newTestServer(t *testing.T) (*Server, *Registry) {
	registry, _ := newTestRegistry()
	server := NewServer(testConfig(), registry, logger.New("error"))
	return server, registry
}

func authHeader(t *testing.T, server *Server, principal string) string {
	token, err := server.validator.IssueToken(principal, time.Hour)
	assert.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, server *Server, method, path, principal string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set("Authorization", authHeader(t, server, principal))
	}

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func registerAliceHTTP(t *testing.T, server *Server) {
	resp := doRequest(t, server, "POST", "/api/v1/doctors", "alice", map[string]string{
		"name":           "Dr. Alice",
		"dob":            "1980-05-01",
		"gender":         "F",
		"blood_group":    "O+",
		"specialization": "Cardiology",
		"license_number": "100001",
		"email":          "alice@hospital.example",
		"hospital":       "General Hospital",
		"password":       "s3cret",
	})
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestServer_Register(t *testing.T) {
	server, registry := newTestServer(t)

	registerAliceHTTP(t, server)

	// Principal comes from the token, not the body
	valid, err := registry.ValidatePrincipal("alice", "100001")
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestServer_Register_DuplicateConflict(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors", "mallory", map[string]string{
		"name":           "Dr. Mallory",
		"license_number": "100001",
		"password":       "hunter2",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeAlreadyRegistered, body["code"])
}

func TestServer_Register_NoToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, server, "POST", "/api/v1/doctors", "", map[string]string{
		"name": "Dr. Alice",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestServer_Register_BadToken(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/doctors", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestServer_GetDetails(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "GET", "/api/v1/doctors/100001", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var view types.DoctorView
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "Dr. Alice", view.Name)

	// The credential secret never appears in the response
	assert.NotContains(t, resp.Body.String(), "s3cret")
	assert.NotContains(t, resp.Body.String(), "password")
}

func TestServer_GetDetails_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, server, "GET", "/api/v1/doctors/999999", "anyone", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeNotRegistered, body["code"])
}

func TestServer_IsRegistered(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "GET", "/api/v1/doctors/100001/registered", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]bool
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body["registered"])

	resp = doRequest(t, server, "GET", "/api/v1/doctors/999999/registered", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body["registered"])
}

func TestServer_ValidateCredential(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/credentials/validate", "anyone",
		map[string]string{"password": "s3cret"})
	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]bool
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body["valid"])

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/credentials/validate", "anyone",
		map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body["valid"])
}

func TestServer_ValidatePrincipal(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "GET", "/api/v1/doctors/100001/principal/validate", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]bool
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body["valid"])

	resp = doRequest(t, server, "GET", "/api/v1/doctors/100001/principal/validate", "bob", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body["valid"])
}

func TestServer_FindBySpecialization(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "GET", "/api/v1/doctors?specialization=Cardiology", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var views []types.DoctorView
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &views))
	assert.Len(t, views, 1)
	assert.Equal(t, "100001", views[0].LicenseNumber)

	resp = doRequest(t, server, "GET", "/api/v1/doctors?specialization=Dermatology", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &views))
	assert.Empty(t, views)
}

func TestServer_Permissions(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/permissions", "patient-7",
		map[string]string{"patient_id": "patient-7", "doctor_name": "Dr. Alice"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "GET", "/api/v1/doctors/100001/permissions/patient-7", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	var flag map[string]bool
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &flag))
	assert.True(t, flag["granted"])

	resp = doRequest(t, server, "GET", "/api/v1/patients/patient-7/doctors", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	var grants []types.GrantedDoctor
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &grants))
	assert.Len(t, grants, 1)
	assert.Equal(t, "Dr. Alice", grants[0].Name)
}

func TestServer_Permissions_DuplicateConflict(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	grant := map[string]string{"patient_id": "patient-7", "doctor_name": "Dr. Alice"}
	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/permissions", "patient-7", grant)
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/permissions", "patient-7", grant)
	assert.Equal(t, http.StatusConflict, resp.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeAlreadyGranted, body["code"])
}

func TestServer_Slots(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots", "alice",
		map[string]string{"date": "2026-09-10", "time": "09:00"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "GET", "/api/v1/doctors/100001/slots", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var slots []types.AppointmentSlot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &slots))
	assert.Len(t, slots, 1)
	assert.False(t, slots[0].IsBooked)
}

func TestServer_Slots_NotOwner(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots", "bob",
		map[string]string{"date": "2026-09-10", "time": "09:00"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeUnauthorized, body["code"])
}

func TestServer_ListSlots_UnknownLicense(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, server, "GET", "/api/v1/doctors/999999/slots", "anyone", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var slots []types.AppointmentSlot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &slots))
	assert.Empty(t, slots)
}

func TestServer_BookSlot(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots", "alice",
		map[string]string{"date": "2026-09-10", "time": "09:00"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/0/book", "bob", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, server, "GET", "/api/v1/doctors/100001/slots", "anyone", nil)
	var slots []types.AppointmentSlot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &slots))
	assert.True(t, slots[0].IsBooked)
	assert.Equal(t, "bob", slots[0].BookedBy)
}

func TestServer_BookSlot_Conflicts(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots", "alice",
		map[string]string{"date": "2026-09-10", "time": "09:00"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/0/book", "bob", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/0/book", "carol", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeAlreadyBooked, body["code"])

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/5/book", "carol", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeInvalidIndex, body["code"])
}

func TestServer_BookSlot_NonNumericIndex(t *testing.T) {
	server, _ := newTestServer(t)
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/abc/book", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "healthy")
}

func TestTokenValidator_RejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()
	validator := NewTokenValidator(&cfg.JWT)

	other := NewTokenValidator(&config.JWTConfig{SecretKey: "test-secret", Issuer: "someone-else"})
	token, err := other.IssueToken("alice", time.Hour)
	assert.NoError(t, err)

	_, err = validator.PrincipalFromToken(token)
	assert.Error(t, err)
}

func TestTokenValidator_RejectsExpired(t *testing.T) {
	cfg := testConfig()
	validator := NewTokenValidator(&cfg.JWT)

	token, err := validator.IssueToken("alice", -time.Hour)
	assert.NoError(t, err)

	_, err = validator.PrincipalFromToken(token)
	assert.Error(t, err)
}

func TestTokenValidator_RoundTrip(t *testing.T) {
	cfg := testConfig()
	validator := NewTokenValidator(&cfg.JWT)

	token, err := validator.IssueToken("alice", time.Hour)
	assert.NoError(t, err)

	principal, err := validator.PrincipalFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestServer_OperationScenario(t *testing.T) {
	server, _ := newTestServer(t)

	// Register, publish a slot, have a patient grant access and book it
	registerAliceHTTP(t, server)

	resp := doRequest(t, server, "POST", "/api/v1/doctors/100001/slots", "alice",
		map[string]string{"date": "2026-09-10", "time": "09:00"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/permissions", "patient-7",
		map[string]string{"patient_id": "patient-7", "doctor_name": "Dr. Alice"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, server, "POST", "/api/v1/doctors/100001/slots/0/book", "patient-7", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, server, "GET", "/api/v1/doctors/100001/slots", "patient-7", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	var slots []types.AppointmentSlot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &slots))
	assert.True(t, slots[0].IsBooked)
	assert.Equal(t, "patient-7", slots[0].BookedBy)
}
