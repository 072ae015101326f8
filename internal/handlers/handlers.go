package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"saferide/go-backend/internal/database"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

const Version = "1.0"

type API struct {
	store    database.Store
	hub      *Hub
	metrics  *services.Metrics
	brokerUp func() bool
}

func NewAPI(store database.Store, hub *Hub, metrics *services.Metrics, brokerUp func() bool) *API {
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	if brokerUp == nil {
		brokerUp = func() bool { return false }
	}
	return &API{store: store, hub: hub, metrics: metrics, brokerUp: brokerUp}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) bool {
	return emailRegex.MatchString(email) && len(email) <= 255
}

func validatePassword(password string) bool {
	if len(password) < 8 || len(password) > 72 {
		return false
	}
	hasLetter := false
	hasNumber := false
	for _, char := range password {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			hasLetter = true
		}
		if char >= '0' && char <= '9' {
			hasNumber = true
		}
	}
	return hasLetter && hasNumber
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("could not write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg, Timestamp: time.Now().Unix()})
}

func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" || req.Password == "" || req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "Email, password and vehicle_id are required")
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if !validatePassword(req.Password) {
		writeError(w, http.StatusBadRequest, "Password must be 8-72 characters with at least one letter and one number")
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("password hashing failed")
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		VehicleID:    req.VehicleID,
		PasswordHash: passwordHash,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Error().Err(err).Msg("signup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	log.Info().Str("email", req.Email).Str("vehicle_id", req.VehicleID).Msg("user registered")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "User created",
		"vehicle_id": user.VehicleID,
	})
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := a.store.UserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	} else if err != nil {
		log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	log.Info().Str("email", user.Email).Msg("user logged in")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Login successful",
		"vehicle_id": user.VehicleID,
		"name":       user.Name,
		"email":      user.Email,
	})
}

func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicle_id")

	latest, err := a.store.Latest(r.Context(), vehicleID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Vehicle not found")
		return
	} else if err != nil {
		log.Error().Err(err).Str("vehicle_id", vehicleID).Msg("status lookup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	driver, vehicle, err := a.store.Statuses(r.Context(), vehicleID)
	if err != nil {
		driver, vehicle = "unknown", "unknown"
	}
	writeJSON(w, http.StatusOK, models.Snapshot{Telemetry: latest, DriverStatus: driver, VehicleStatus: vehicle})
}

func (a *API) History(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicle_id")
	history, err := a.store.History(r.Context(), vehicleID)
	if err != nil {
		log.Error().Err(err).Str("vehicle_id", vehicleID).Msg("history lookup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) Alerts(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicle_id")
	incidents, err := a.store.Incidents(r.Context(), vehicleID)
	if err != nil {
		log.Error().Err(err).Str("vehicle_id", vehicleID).Msg("alerts lookup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (a *API) Points(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicle_id")
	points, err := a.store.Points(r.Context(), vehicleID)
	if err != nil {
		log.Error().Err(err).Str("vehicle_id", vehicleID).Msg("points lookup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vehicle_id": vehicleID, "points": points})
}

func (a *API) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.VehicleID == "" || req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "vehicle_id and a positive points value are required")
		return
	}

	balance, err := a.store.RedeemPoints(r.Context(), req.VehicleID, req.Points)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusBadRequest, "No points available")
		return
	case errors.Is(err, database.ErrInsufficientPoints):
		writeError(w, http.StatusBadRequest, "Insufficient balance")
		return
	case err != nil:
		log.Error().Err(err).Str("vehicle_id", req.VehicleID).Msg("redeem failed")
		writeError(w, http.StatusInternalServerError, "Failed to deduct points")
		return
	}

	log.Info().Str("vehicle_id", req.VehicleID).Int("points", req.Points).Int("balance", balance).Msg("points redeemed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Redemption successful", "new_balance": balance})
}

func Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	brokerUp := a.brokerUp()
	if !brokerUp {
		status = "degraded"
	}
	if err := a.store.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("store ping failed")
		status = "degraded"
	}

	activeClients := 0
	if a.hub != nil {
		activeClients = a.hub.Count()
	}
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:        status,
		Broker:        brokerUp,
		ActiveClients: activeClients,
		UptimeSec:     int64(a.metrics.Uptime().Seconds()),
		Version:       Version,
	})
}

// MetricsHandler serves the counters of any process.
func MetricsHandler(metrics *services.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snapshot := metrics.Snapshot()
		snapshot["timestamp"] = time.Now().Format(time.RFC3339)
		writeJSON(w, http.StatusOK, snapshot)
	}
}
