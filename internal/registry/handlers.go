package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/config"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/monitoring"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// Server exposes the registry over HTTP. Each registry operation is one
// request/response unit; the caller principal arrives in a bearer token and
// is extracted by the principal middleware before any handler runs.
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	registry  interfaces.RegistryService
	validator *TokenValidator
	health    *monitoring.HealthManager
	server    *http.Server
}

// NewServer creates an HTTP server around the registry service.
func NewServer(cfg *config.Config, registry interfaces.RegistryService, log *logger.Logger) *Server {
	health := monitoring.NewHealthManager("doctor-registry", "1.0.0")
	health.RegisterChecker("store", monitoring.NewCustomHealthChecker(func(ctx context.Context) monitoring.HealthCheck {
		if _, err := registry.IsRegistered("_health_probe"); err != nil {
			return monitoring.HealthCheck{
				Status:  monitoring.HealthStatusUnhealthy,
				Message: fmt.Sprintf("Registry store unreachable: %v", err),
			}
		}
		return monitoring.HealthCheck{
			Status:  monitoring.HealthStatusHealthy,
			Message: "Registry store reachable",
		}
	}))

	return &Server{
		config:    cfg,
		logger:    log,
		registry:  registry,
		validator: NewTokenValidator(&cfg.JWT),
		health:    health,
	}
}

// Health exposes the health manager so the binary can attach backend checks.
func (s *Server) Health() *monitoring.HealthManager {
	return s.health
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.principalMiddleware)

	// Registration and identity
	api.HandleFunc("/doctors", s.registerHandler).Methods("POST")
	api.HandleFunc("/doctors", s.findBySpecializationHandler).Methods("GET").Queries("specialization", "{specialization}")
	api.HandleFunc("/doctors/{license}", s.getDetailsHandler).Methods("GET")
	api.HandleFunc("/doctors/{license}/registered", s.isRegisteredHandler).Methods("GET")
	api.HandleFunc("/doctors/{license}/credentials/validate", s.validateCredentialHandler).Methods("POST")
	api.HandleFunc("/doctors/{license}/principal/validate", s.validatePrincipalHandler).Methods("GET")

	// Record-access permissions
	api.HandleFunc("/doctors/{license}/permissions", s.grantPermissionHandler).Methods("POST")
	api.HandleFunc("/doctors/{license}/permissions/{patientId}", s.isPermissionGrantedHandler).Methods("GET")
	api.HandleFunc("/patients/{patientId}/doctors", s.listGrantedDoctorsHandler).Methods("GET")

	// Appointment slots
	api.HandleFunc("/doctors/{license}/slots", s.addSlotHandler).Methods("POST")
	api.HandleFunc("/doctors/{license}/slots", s.listSlotsHandler).Methods("GET")
	api.HandleFunc("/doctors/{license}/slots/{index}/book", s.bookSlotHandler).Methods("POST")

	// Operational endpoints, outside the authenticated subtree
	router.HandleFunc(s.config.Monitoring.HealthPath, s.health.HTTPHandler()).Methods("GET")
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	s.logger.Info("Registry service routes configured")
	return router
}

// Start runs the HTTP server until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.WithField("addr", addr).Info("Starting registry service")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// registerRequest carries the registration fields; the owning principal comes
// from the authenticated token, never the body.
type registerRequest struct {
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	Gender         string `json:"gender"`
	BloodGroup     string `json:"blood_group"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Email          string `json:"email"`
	Hospital       string `json:"hospital"`
	Password       string `json:"password"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	doctor := &types.Doctor{
		Principal:      PrincipalFromContext(r.Context()),
		Name:           req.Name,
		DOB:            req.DOB,
		Gender:         req.Gender,
		BloodGroup:     req.BloodGroup,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		Email:          req.Email,
		Hospital:       req.Hospital,
		Password:       req.Password,
	}

	if err := s.registry.Register(doctor); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"license_number": doctor.LicenseNumber})
}

func (s *Server) getDetailsHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	view, err := s.registry.GetDetails(license)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) isRegisteredHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	registered, err := s.registry.IsRegistered(license)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"registered": registered})
}

func (s *Server) validateCredentialHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	valid, err := s.registry.ValidateCredential(license, req.Password)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) validatePrincipalHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]
	principal := PrincipalFromContext(r.Context())

	valid, err := s.registry.ValidatePrincipal(principal, license)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) findBySpecializationHandler(w http.ResponseWriter, r *http.Request) {
	specialization := r.URL.Query().Get("specialization")

	doctors, err := s.registry.FindBySpecialization(specialization)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, doctors)
}

func (s *Server) grantPermissionHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	var req struct {
		PatientID  string `json:"patient_id"`
		DoctorName string `json:"doctor_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.registry.GrantPermission(license, req.PatientID, req.DoctorName); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Permission granted"})
}

func (s *Server) isPermissionGrantedHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	granted, err := s.registry.IsPermissionGranted(vars["license"], vars["patientId"])
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (s *Server) listGrantedDoctorsHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patientId"]

	grants, err := s.registry.ListGrantedDoctors(patientID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, grants)
}

func (s *Server) addSlotHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	var req struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := s.registry.AddAppointmentSlot(principal, license, req.Date, req.Time); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Slot added"})
}

func (s *Server) listSlotsHandler(w http.ResponseWriter, r *http.Request) {
	license := mux.Vars(r)["license"]

	slots, err := s.registry.ListSlots(license)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, slots)
}

func (s *Server) bookSlotHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	license := vars["license"]

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid slot index", err)
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := s.registry.BookSlot(license, index, principal); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Slot booked"})
}

// writeRegistryError maps the registry error taxonomy onto HTTP statuses.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	var status int
	switch types.ErrorCode(err) {
	case types.ErrCodeAlreadyRegistered, types.ErrCodeAlreadyGranted, types.ErrCodeAlreadyBooked:
		status = http.StatusConflict
	case types.ErrCodeNotRegistered:
		status = http.StatusNotFound
	case types.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case types.ErrCodeInvalidIndex:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	s.writeJSONResponse(w, status, map[string]string{
		"code":  types.ErrorCode(err),
		"error": err.Error(),
	})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.WithError(err).Warn(message)
	}
	s.writeJSONResponse(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
