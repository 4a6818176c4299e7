package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/services"
	"github.com/chachabrian/haulbook-backend/internal/store/memstore"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

const (
	testSecret    = "handler-test-secret"
	adminEmail    = "root@haulbook.local"
	adminPassword = "rootpassword"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

type response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memstore.New()
	log := logger.NewNop()
	dispatcher := services.NewDispatcher(st, st, log, services.DispatcherConfig{})
	auth := services.NewAuthService(st, testSecret, time.Hour, log)
	require.NoError(t, auth.SeedSuperAdmin(t.Context(), adminEmail, adminPassword))

	router := NewRouter(Deps{
		Auth:          auth,
		Bookings:      services.NewBookingService(st, dispatcher, log),
		Assigner:      services.NewAssignmentCoordinator(st, dispatcher, log),
		Location:      services.NewLocationSink(st, log),
		Drivers:       services.NewDriverService(st, log),
		Notifications: services.NewNotificationService(st, st),
		Notifier:      dispatcher,
		Health:        st,
		JWTSecret:     testSecret,
		Log:           log,
	})
	return &testServer{t: t, router: router, store: st}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, response) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var res response
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

// chunked sends body without a Content-Length, as a streaming client would.
func (s *testServer) chunked(method, path, token, body string) (int, response) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, io.NopCloser(strings.NewReader(body)))
	require.EqualValues(s.t, -1, req.ContentLength)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var res response
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func (s *testServer) ok(method, path, token string, body, into interface{}) {
	s.t.Helper()
	code, res := s.do(method, path, token, body)
	require.Truef(s.t, code < 300, "%s %s: %d %s %s", method, path, code, res.Error, res.Message)
	require.True(s.t, res.Success)
	if into != nil {
		require.NoError(s.t, json.Unmarshal(res.Data, into))
	}
}

func (s *testServer) register(email string, role models.Role) string {
	s.t.Helper()
	var auth struct {
		Token string `json:"token"`
	}
	s.ok(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": email, "email": email, "password": "password123", "role": role,
	}, &auth)
	return auth.Token
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	var auth struct {
		Token string `json:"token"`
	}
	s.ok(http.MethodPost, "/api/auth/login", "", gin.H{"email": adminEmail, "password": adminPassword}, &auth)
	return auth.Token
}

// onboardDriver registers a driver with a profile and an admin-verified truck
// and returns the token and driver profile id.
func (s *testServer) onboardDriver(email, vehicleNumber, admin string) (string, string) {
	s.t.Helper()
	token := s.register(email, models.RoleDriver)

	var profile models.DriverProfile
	s.ok(http.MethodPost, "/api/drivers/profile", token, gin.H{"licenseNumber": "DL-" + vehicleNumber, "city": "Bengaluru"}, &profile)

	var vehicle models.Vehicle
	s.ok(http.MethodPost, "/api/drivers/vehicles", token, gin.H{"vehicleNumber": vehicleNumber, "vehicleType": "TRUCK"}, &vehicle)
	s.ok(http.MethodPut, "/api/admin/vehicles/"+vehicle.ID, admin, gin.H{"isVerified": true}, nil)
	return token, profile.ID
}

func bookingBody() gin.H {
	return gin.H{
		"pickupAddress":    "Koramangala, Bengaluru",
		"pickupLatitude":   12.9352,
		"pickupLongitude":  77.6245,
		"dropoffAddress":   "Hebbal, Bengaluru",
		"dropoffLatitude":  13.0358,
		"dropoffLongitude": 77.5970,
		"pickupTime":       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"serviceType":      "TRUCK",
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	code, res := s.do(http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", res.Error)
	assert.False(t, res.Success)

	code, res = s.do(http.MethodGet, "/api/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", res.Error)

	code, res = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": adminEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "INVALID_CREDENTIALS", res.Error)

	customer := s.register("c@example.com", models.RoleCustomer)
	var profile models.User
	s.ok(http.MethodGet, "/api/users/profile", customer, nil, &profile)
	assert.Equal(t, "c@example.com", profile.Email)

	code, res = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "x", "email": "c@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "EMAIL_TAKEN", res.Error)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	customer := s.register("c@example.com", models.RoleCustomer)

	tests := []struct {
		method, path string
	}{
		{http.MethodPut, "/api/bookings/any/accept"},
		{http.MethodPut, "/api/bookings/any/update-location"},
		{http.MethodPost, "/api/bookings/admin/assign-driver"},
		{http.MethodPut, "/api/bookings/admin/status"},
		{http.MethodGet, "/api/admin/drivers"},
		{http.MethodGet, "/api/drivers/profile"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, res := s.do(tt.method, tt.path, customer, gin.H{})
			assert.Equal(t, http.StatusForbidden, code)
			assert.Equal(t, "FORBIDDEN", res.Error)
		})
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	customer := s.register("c@example.com", models.RoleCustomer)
	driver, driverID := s.onboardDriver("d1@example.com", "KA01AA1111", admin)
	_, otherDriverID := s.onboardDriver("d2@example.com", "KA01AA2222", admin)

	var b models.Booking
	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &b)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Nil(t, b.DriverID)
	assert.Greater(t, b.EstimatedFare, 0.0)
	path := "/api/bookings/" + b.ID

	code, res := s.do(http.MethodPut, path+"/start", driver, nil)
	assert.Equal(t, http.StatusForbidden, code, res.Message)

	s.ok(http.MethodPost, "/api/bookings/admin/assign-driver", admin, gin.H{"bookingId": b.ID, "driverId": driverID}, &b)
	assert.Equal(t, models.StatusDriverAssigned, b.Status)
	require.NotNil(t, b.DriverID)
	assert.Equal(t, driverID, *b.DriverID)

	code, res = s.do(http.MethodPost, "/api/bookings/admin/assign-driver", admin, gin.H{"bookingId": b.ID, "driverId": otherDriverID})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "BOOKING_ALREADY_ASSIGNED", res.Error)

	code, res = s.do(http.MethodPut, path+"/start", driver, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TRANSITION", res.Error)
	assert.Contains(t, res.Message, "DRIVER_ASSIGNED")

	s.ok(http.MethodPut, path+"/accept", driver, nil, &b)
	assert.Equal(t, models.StatusDriverAssigned, b.Status)
	assert.NotNil(t, b.AcceptedAt)

	code, res = s.do(http.MethodPut, path+"/update-location", driver, gin.H{"latitude": 12.95, "longitude": 77.61})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BOOKING_NOT_IN_PROGRESS", res.Error)

	s.ok(http.MethodPut, path+"/arrived", driver, nil, &b)
	assert.Equal(t, models.StatusDriverArrived, b.Status)
	s.ok(http.MethodPut, path+"/start", driver, nil, &b)
	assert.Equal(t, models.StatusInProgress, b.Status)

	code, res = s.do(http.MethodPut, path+"/update-location", driver, gin.H{"latitude": 91, "longitude": 77.61})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_COORDINATES", res.Error)

	var ack services.LocationUpdate
	s.ok(http.MethodPut, path+"/update-location", driver, gin.H{"latitude": 12.95, "longitude": 77.61}, &ack)
	assert.Equal(t, b.ID, ack.BookingID)

	var latest services.LocationUpdate
	s.ok(http.MethodGet, path+"/location", customer, nil, &latest)
	assert.Equal(t, 12.95, latest.Latitude)

	s.ok(http.MethodPut, path+"/complete", driver, gin.H{"actualFare": 950}, &b)
	assert.Equal(t, models.StatusCompleted, b.Status)
	require.NotNil(t, b.ActualFare)
	assert.Equal(t, 950.0, *b.ActualFare)

	var trip models.Trip
	s.ok(http.MethodGet, path+"/trip", customer, nil, &trip)
	assert.Equal(t, models.TripStatusCompleted, trip.Status)
	assert.Equal(t, driverID, trip.DriverProfileID)

	code, res = s.do(http.MethodPut, path+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TRANSITION", res.Error)

	var page struct {
		Items []models.Booking `json:"items"`
		Total int64            `json:"total"`
	}
	s.ok(http.MethodGet, "/api/bookings?status=completed", customer, nil, &page)
	assert.EqualValues(t, 1, page.Total)

	var notes struct {
		Total int64 `json:"total"`
	}
	s.ok(http.MethodGet, "/api/notifications?unread=true", customer, nil, &notes)
	assert.Greater(t, notes.Total, int64(1))
}

func TestOptionalBodiesWithoutContentLength(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	customer := s.register("c@example.com", models.RoleCustomer)
	driver, driverID := s.onboardDriver("d1@example.com", "KA01AA1111", admin)

	var b models.Booking
	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &b)
	path := "/api/bookings/" + b.ID
	s.ok(http.MethodPost, "/api/bookings/admin/assign-driver", admin, gin.H{"bookingId": b.ID, "driverId": driverID}, nil)
	s.ok(http.MethodPut, path+"/arrived", driver, nil, nil)
	s.ok(http.MethodPut, path+"/start", driver, nil, nil)

	code, res := s.chunked(http.MethodPut, path+"/complete", driver, `{"actualFare": -1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error)

	code, res = s.chunked(http.MethodPut, path+"/complete", driver, `{"actualFare": 450}`)
	require.Equal(t, http.StatusOK, code, res.Message)
	require.NoError(t, json.Unmarshal(res.Data, &b))
	require.NotNil(t, b.ActualFare)
	assert.Equal(t, 450.0, *b.ActualFare)

	var other models.Booking
	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &other)
	code, res = s.chunked(http.MethodPut, "/api/bookings/"+other.ID+"/cancel", customer, `{"reason": "plans changed"}`)
	require.Equal(t, http.StatusOK, code, res.Message)
	require.NoError(t, json.Unmarshal(res.Data, &other))
	assert.Equal(t, models.StatusCancelled, other.Status)
	assert.Equal(t, "plans changed", other.CancelReason)

	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &other)
	code, res = s.chunked(http.MethodPut, "/api/bookings/"+other.ID+"/cancel", customer, "")
	assert.Equal(t, http.StatusOK, code, res.Message)
}

func TestRejectReleasesBooking(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	customer := s.register("c@example.com", models.RoleCustomer)
	driver, driverID := s.onboardDriver("d1@example.com", "KA01AA1111", admin)

	var b models.Booking
	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &b)
	s.ok(http.MethodPost, "/api/bookings/admin/assign-driver", admin, gin.H{"bookingId": b.ID, "driverId": driverID}, nil)
	s.ok(http.MethodPut, "/api/bookings/"+b.ID+"/reject", driver, nil, &b)

	assert.Equal(t, models.StatusPending, b.Status)
	assert.Nil(t, b.DriverID)

	code, _ := s.do(http.MethodGet, "/api/bookings/"+b.ID, driver, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestCustomerCancel(t *testing.T) {
	s := newTestServer(t)
	customer := s.register("c@example.com", models.RoleCustomer)
	other := s.register("o@example.com", models.RoleCustomer)

	var b models.Booking
	s.ok(http.MethodPost, "/api/bookings", customer, bookingBody(), &b)

	code, res := s.do(http.MethodPut, "/api/bookings/"+b.ID+"/cancel", other, nil)
	assert.Equal(t, http.StatusForbidden, code, res.Message)

	s.ok(http.MethodPut, "/api/bookings/"+b.ID+"/cancel", customer, gin.H{"reason": "changed plans"}, &b)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, "changed plans", b.CancelReason)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	customer := s.register("c@example.com", models.RoleCustomer)

	body := bookingBody()
	delete(body, "pickupAddress")
	code, res := s.do(http.MethodPost, "/api/bookings", customer, body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error)

	body = bookingBody()
	delete(body, "pickupLatitude")
	delete(body, "pickupLongitude")
	code, res = s.do(http.MethodPost, "/api/bookings", customer, body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error)

	body = bookingBody()
	body["pickupLatitude"] = 0
	body["pickupLongitude"] = 0
	code, _ = s.do(http.MethodPost, "/api/bookings", customer, body)
	assert.Equal(t, http.StatusCreated, code)

	body = bookingBody()
	body["serviceType"] = "SPACESHIP"
	code, res = s.do(http.MethodPost, "/api/bookings", customer, body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error)

	code, res = s.do(http.MethodGet, "/api/bookings/"+models.NewID(), customer, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "BOOKING_NOT_FOUND", res.Error)

	admin := s.adminToken()
	code, res = s.do(http.MethodPut, "/api/bookings/admin/status", admin, gin.H{"bookingId": models.NewID(), "status": "COMPLETED"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "BOOKING_NOT_FOUND", res.Error)
}

func TestEstimateFare(t *testing.T) {
	s := newTestServer(t)

	var estimate struct {
		DistanceKm float64 `json:"distanceKm"`
		Total      float64 `json:"total"`
	}
	s.ok(http.MethodGet, "/api/pricing/estimate?serviceType=BIKE&pickupLatitude=12.9352&pickupLongitude=77.6245&dropoffLatitude=13.0358&dropoffLongitude=77.5970", "", nil, &estimate)
	assert.Greater(t, estimate.DistanceKm, 10.0)
	assert.GreaterOrEqual(t, estimate.Total, 50.0)

	code, res := s.do(http.MethodGet, "/api/pricing/estimate?serviceType=BIKE&pickupLatitude=95&pickupLongitude=77.6245&dropoffLatitude=13.0358&dropoffLongitude=77.5970", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_COORDINATES", res.Error)

	code, res = s.do(http.MethodGet, "/api/pricing/estimate?serviceType=BIKE&dropoffLatitude=13.0358&dropoffLongitude=77.5970", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error)
}

func TestRespondErrorHidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("pq: connection refused to 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	var res response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "INTERNAL_ERROR", res.Error)
	assert.Equal(t, "internal server error", res.Message)
	assert.Len(t, c.Errors, 1)
}
