package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/dataset"
	"ekadashi.app/models"
	"ekadashi.app/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLocationService implements service.LocationServiceInterface
type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) ResolveCurrentLocation(ctx context.Context) *service.LocationResult {
	args := m.Called(ctx)
	return args.Get(0).(*service.LocationResult)
}

func (m *MockLocationService) GetCachedLocation() (*models.ResolvedLocation, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolvedLocation), args.Error(1)
}

func (m *MockLocationService) ClearCache() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockLocationService) BucketFromDeviceTimezone(id string) models.TimezoneBucket {
	args := m.Called(id)
	return args.Get(0).(models.TimezoneBucket)
}

// MockNotificationService implements service.NotificationServiceInterface
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) ScheduleForEvent(event *models.FastingEvent, bucket models.TimezoneBucket,
	enabledTypes []models.ReminderType, lang string) (int, error) {
	args := m.Called(event, bucket, enabledTypes, lang)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) RescheduleAll(bucket models.TimezoneBucket,
	enabledTypes []models.ReminderType, lang string) int {
	args := m.Called(bucket, enabledTypes, lang)
	return args.Int(0)
}

func (m *MockNotificationService) CancelAll() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNotificationService) CancelForEvent(eventID int) error {
	args := m.Called(eventID)
	return args.Error(0)
}

func (m *MockNotificationService) PendingCount() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) ShowImmediate(ctx context.Context, title, body string) error {
	args := m.Called(ctx, title, body)
	return args.Error(0)
}

// MockSettingsService implements service.SettingsServiceInterface
type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Get() (*models.UserPreferences, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPreferences), args.Error(1)
}

func (m *MockSettingsService) Update(req *models.PreferencesRequest) (*models.UserPreferences, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPreferences), args.Error(1)
}

func (m *MockSettingsService) SetCurrentBucket(bucket models.TimezoneBucket) {
	m.Called(bucket)
}

func (m *MockSettingsService) Reset() (*models.UserPreferences, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPreferences), args.Error(1)
}

const serverTestDataset = `{
  "version": "2.1",
  "year": 2026,
  "source": "test",
  "timezones": {
    "IST": { "cities": ["India"] },
    "EST": { "cities": ["New York"] }
  },
  "ekadashis": [
    {
      "id": 1,
      "name": { "en": "Jaya Ekadashi" },
      "description": { "en": "Test event." },
      "timing": {
        "IST": {
          "date": "2026-02-12",
          "fasting_start": "2026-02-12T06:45:00+05:30",
          "parana_start": "2026-02-13T06:44:00+05:30",
          "parana_end": "2026-02-13T09:50:00+05:30"
        }
      }
    }
  ]
}`

type serverMocks struct {
	location     *MockLocationService
	notification *MockNotificationService
	settings     *MockSettingsService
}

func setupTestServer(t *testing.T) (*Server, *serverMocks) {
	gin.SetMode(gin.TestMode)

	store, err := dataset.LoadFromBytes([]byte(serverTestDataset), "en")
	require.NoError(t, err)

	mocks := &serverMocks{
		location:     &MockLocationService{},
		notification: &MockNotificationService{},
		settings:     &MockSettingsService{},
	}

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Dataset: config.DatasetConfig{DefaultLanguage: "en"},
	}

	server := NewServer(cfg, store, mocks.location, mocks.notification, mocks.settings)
	return server, mocks
}

func performRequest(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(w, req)
	return w
}

func TestListEvents(t *testing.T) {
	server, _ := setupTestServer(t)

	originalNow := timeNow
	timeNow = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = originalNow }()

	t.Run("ExplicitBucket", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events?tz=IST", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var payload struct {
			Bucket string `json:"bucket"`
			Events []struct {
				ID   int `json:"id"`
				Text struct {
					Name string `json:"name"`
				} `json:"text"`
			} `json:"events"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "IST", payload.Bucket)
		require.Len(t, payload.Events, 1)
		assert.Equal(t, "Jaya Ekadashi", payload.Events[0].Text.Name)
	})

	t.Run("InvalidBucket", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events?tz=GMT", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListEvents_BucketFromPreferences(t *testing.T) {
	server, mocks := setupTestServer(t)

	originalNow := timeNow
	timeNow = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = originalNow }()

	prefs := models.DefaultPreferences()
	prefs.CurrentTimezoneBucket = models.BucketEST
	mocks.settings.On("Get").Return(prefs, nil)

	w := performRequest(server, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bucket":"EST"`)
	// The only event carries no EST timing, so the view is empty
	assert.Contains(t, w.Body.String(), `"events":[]`)
}

func TestGetEvent(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("Found", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events/1?tz=IST", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Jaya Ekadashi")
	})

	t.Run("UnknownID", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events/99?tz=IST", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("NonIntegerID", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events/abc?tz=IST", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NoTimingForBucket", func(t *testing.T) {
		w := performRequest(server, http.MethodGet, "/api/events/1?tz=EST", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestResolveLocation_Success(t *testing.T) {
	server, mocks := setupTestServer(t)

	location := &models.ResolvedLocation{
		Latitude: 28.6139, Longitude: 77.2090,
		CityName: "New Delhi", TimezoneBucket: models.BucketIST,
		CapturedAt: time.Now(),
	}
	mocks.location.On("ResolveCurrentLocation", mock.Anything).Return(&service.LocationResult{
		Outcome: service.LocationSuccess, Location: location,
	})
	mocks.settings.On("SetCurrentBucket", models.BucketIST).Return()
	mocks.settings.On("Get").Return(models.DefaultPreferences(), nil)
	mocks.notification.On("RescheduleAll", models.BucketIST, mock.Anything, "en").Return(4)

	w := performRequest(server, http.MethodPost, "/api/location/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"success"`)
	assert.Contains(t, w.Body.String(), "New Delhi")
	mocks.notification.AssertExpectations(t)
}

func TestResolveLocation_PermissionDeniedUsesDeviceTimezone(t *testing.T) {
	server, mocks := setupTestServer(t)

	mocks.location.On("ResolveCurrentLocation", mock.Anything).Return(&service.LocationResult{
		Outcome: service.LocationPermissionDenied,
	})
	mocks.location.On("BucketFromDeviceTimezone", "America/Chicago").Return(models.BucketCST)
	mocks.settings.On("SetCurrentBucket", models.BucketCST).Return()

	w := performRequest(server, http.MethodPost, "/api/location/resolve?device_tz=America/Chicago", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"permission_denied"`)
	assert.Contains(t, w.Body.String(), `"fallback_bucket":"CST"`)
	mocks.notification.AssertNotCalled(t, "RescheduleAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveLocation_NoLocation(t *testing.T) {
	server, mocks := setupTestServer(t)

	mocks.location.On("ResolveCurrentLocation", mock.Anything).Return(&service.LocationResult{
		Outcome: service.LocationNoLocation,
	})

	w := performRequest(server, http.MethodPost, "/api/location/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"no_location"`)
}

func TestCachedLocationEndpoints(t *testing.T) {
	t.Run("CachedLocationPresent", func(t *testing.T) {
		server, mocks := setupTestServer(t)
		mocks.location.On("GetCachedLocation").Return(&models.ResolvedLocation{
			CityName: "Chicago", TimezoneBucket: models.BucketCST,
		}, nil)

		w := performRequest(server, http.MethodGet, "/api/location/cached", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Chicago")
	})

	t.Run("NoCachedLocation", func(t *testing.T) {
		server, mocks := setupTestServer(t)
		mocks.location.On("GetCachedLocation").Return(nil, nil)

		w := performRequest(server, http.MethodGet, "/api/location/cached", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ClearCache", func(t *testing.T) {
		server, mocks := setupTestServer(t)
		mocks.location.On("ClearCache").Return(nil)

		w := performRequest(server, http.MethodDelete, "/api/location/cache", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUpdatePreferences(t *testing.T) {
	t.Run("ValidUpdate_TriggersReconciliation", func(t *testing.T) {
		server, mocks := setupTestServer(t)

		updated := models.DefaultPreferences()
		updated.RemindOnParana = false
		mocks.settings.On("Update", mock.Anything).Return(updated, nil)
		mocks.settings.On("Get").Return(updated, nil)
		mocks.notification.On("RescheduleAll", updated.CurrentTimezoneBucket, mock.Anything, "en").Return(3)

		body, _ := json.Marshal(map[string]any{"remind_on_parana": false})
		w := performRequest(server, http.MethodPut, "/api/preferences", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"remind_on_parana":false`)
		mocks.notification.AssertExpectations(t)
	})

	t.Run("MasterGateOff_CancelsAll", func(t *testing.T) {
		server, mocks := setupTestServer(t)

		updated := models.DefaultPreferences()
		updated.NotificationsEnabled = false
		mocks.settings.On("Update", mock.Anything).Return(updated, nil)
		mocks.settings.On("Get").Return(updated, nil)
		mocks.notification.On("CancelAll").Return(nil)

		body, _ := json.Marshal(map[string]any{"notifications_enabled": false})
		w := performRequest(server, http.MethodPut, "/api/preferences", body)
		require.Equal(t, http.StatusOK, w.Code)
		mocks.notification.AssertCalled(t, "CancelAll")
		mocks.notification.AssertNotCalled(t, "RescheduleAll", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		server, _ := setupTestServer(t)
		w := performRequest(server, http.MethodPut, "/api/preferences", []byte(`{"auto_detect_enabled": "yes"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTestNotification(t *testing.T) {
	t.Run("SendsImmediately", func(t *testing.T) {
		server, mocks := setupTestServer(t)
		mocks.notification.On("ShowImmediate", mock.Anything, "Hello", "World").Return(nil)

		body, _ := json.Marshal(map[string]string{"title": "Hello", "body": "World"})
		w := performRequest(server, http.MethodPost, "/api/notifications/test", body)
		assert.Equal(t, http.StatusOK, w.Code)
		mocks.notification.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		server, _ := setupTestServer(t)
		w := performRequest(server, http.MethodPost, "/api/notifications/test", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPendingAndCancelNotifications(t *testing.T) {
	server, mocks := setupTestServer(t)
	mocks.notification.On("PendingCount").Return(int64(7), nil)
	mocks.notification.On("CancelAll").Return(nil)

	w := performRequest(server, http.MethodGet, "/api/notifications/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":7`)

	w = performRequest(server, http.MethodDelete, "/api/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	w := performRequest(server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
