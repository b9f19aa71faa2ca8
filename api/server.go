// Package api exposes the service's HTTP boundary
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"ekadashi.app/config"
	"ekadashi.app/dataset"
	apperrors "ekadashi.app/errors"
	"ekadashi.app/models"
	"ekadashi.app/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server and API handler
type Server struct {
	router              *gin.Engine
	config              *config.Config
	store               *dataset.Store
	locationService     service.LocationServiceInterface
	notificationService service.NotificationServiceInterface
	settingsService     service.SettingsServiceInterface
}

// NewServer creates and configures a new HTTP server
func NewServer(
	cfg *config.Config,
	store *dataset.Store,
	locationService service.LocationServiceInterface,
	notificationService service.NotificationServiceInterface,
	settingsService service.SettingsServiceInterface,
) *Server {
	router := gin.Default()

	server := &Server{
		router:              router,
		config:              cfg,
		store:               store,
		locationService:     locationService,
		notificationService: notificationService,
		settingsService:     settingsService,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/events", s.listEvents)
		api.GET("/events/:id", s.getEvent)
		api.POST("/location/resolve", s.resolveLocation)
		api.GET("/location/cached", s.getCachedLocation)
		api.DELETE("/location/cache", s.clearLocationCache)
		api.GET("/preferences", s.getPreferences)
		api.PUT("/preferences", s.updatePreferences)
		api.POST("/preferences/reset", s.resetPreferences)
		api.POST("/notifications/test", s.testNotification)
		api.GET("/notifications/pending", s.pendingNotifications)
		api.DELETE("/notifications", s.cancelNotifications)
	}

	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start begins the HTTP server
func (s *Server) Start() error {
	return s.router.Run(fmt.Sprintf(":%d", s.config.Server.Port))
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// eventView is the API representation of one event in one bucket
type eventView struct {
	ID     int                   `json:"id"`
	Bucket models.TimezoneBucket `json:"bucket"`
	Text   models.LocalizedText  `json:"text"`
	Timing models.EventTiming    `json:"timing"`
}

func (s *Server) listEvents(c *gin.Context) {
	bucket, ok := s.requestBucket(c)
	if !ok {
		return
	}
	lang := c.DefaultQuery("lang", s.config.Dataset.DefaultLanguage)

	events := s.store.UpcomingForBucket(bucket, timeNow())
	views := make([]eventView, 0, len(events))
	for i := range events {
		views = append(views, eventView{
			ID:     events[i].ID,
			Bucket: bucket,
			Text:   s.store.Text(&events[i], lang),
			Timing: events[i].Timing[bucket],
		})
	}

	c.JSON(http.StatusOK, gin.H{"bucket": bucket, "events": views})
}

func (s *Server) getEvent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		s.handleError(c, apperrors.NewValidationError("event id must be an integer"))
		return
	}

	bucket, ok := s.requestBucket(c)
	if !ok {
		return
	}
	lang := c.DefaultQuery("lang", s.config.Dataset.DefaultLanguage)

	event, lookupErr := s.store.ByID(id)
	if lookupErr != nil {
		s.handleError(c, lookupErr)
		return
	}

	timing, hasTiming := event.Timing[bucket]
	if !hasTiming {
		s.handleError(c, apperrors.NewNotFoundError(
			fmt.Sprintf("event %d has no timing for bucket %s", id, bucket)))
		return
	}

	c.JSON(http.StatusOK, eventView{
		ID:     event.ID,
		Bucket: bucket,
		Text:   s.store.Text(event, lang),
		Timing: timing,
	})
}

// resolveLocation runs the full resolution flow and, on success, reconciles
// reminders for the resolved bucket. On a permission denial the device
// timezone identifier (device_tz query) drives the fallback bucket.
func (s *Server) resolveLocation(c *gin.Context) {
	result := s.locationService.ResolveCurrentLocation(c.Request.Context())

	switch result.Outcome {
	case service.LocationSuccess:
		s.settingsService.SetCurrentBucket(result.Location.TimezoneBucket)
		s.reconcileReminders(result.Location.TimezoneBucket, c.DefaultQuery("lang", s.config.Dataset.DefaultLanguage))
		c.JSON(http.StatusOK, result)

	case service.LocationPermissionDenied, service.LocationServicesDisabled:
		fallback := models.DefaultBucket
		if deviceTz := c.Query("device_tz"); deviceTz != "" {
			fallback = s.locationService.BucketFromDeviceTimezone(deviceTz)
		}
		s.settingsService.SetCurrentBucket(fallback)
		c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome, "fallback_bucket": fallback})

	case service.LocationNoLocation:
		c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome})

	default:
		s.handleError(c, apperrors.New(apperrors.NoLocationError,
			fmt.Sprintf("unexpected resolution outcome %q", result.Outcome)))
	}
}

func (s *Server) getCachedLocation(c *gin.Context) {
	cached, err := s.locationService.GetCachedLocation()
	if err != nil {
		s.handleError(c, apperrors.NewDatabaseError("read cached location", err))
		return
	}
	if cached == nil {
		s.handleError(c, apperrors.NewNotFoundError("no cached location"))
		return
	}
	c.JSON(http.StatusOK, cached)
}

func (s *Server) clearLocationCache(c *gin.Context) {
	if err := s.locationService.ClearCache(); err != nil {
		s.handleError(c, apperrors.NewDatabaseError("clear location cache", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "location cache cleared"})
}

func (s *Server) getPreferences(c *gin.Context) {
	prefs, err := s.settingsService.Get()
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) updatePreferences(c *gin.Context) {
	var req models.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("Request binding error", "error", err)
		s.handleError(c, apperrors.NewValidationError("invalid request format"))
		return
	}

	prefs, err := s.settingsService.Update(&req)
	if err != nil {
		s.handleError(c, err)
		return
	}

	// Preference changes (flags, bucket, master gate) change the correct set
	// of queued reminders; reconcile immediately.
	s.reconcileReminders(prefs.CurrentTimezoneBucket, s.config.Dataset.DefaultLanguage)
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) resetPreferences(c *gin.Context) {
	prefs, err := s.settingsService.Reset()
	if err != nil {
		s.handleError(c, err)
		return
	}
	s.reconcileReminders(prefs.CurrentTimezoneBucket, s.config.Dataset.DefaultLanguage)
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) testNotification(c *gin.Context) {
	var req models.TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperrors.NewValidationError("title and body are required"))
		return
	}

	if err := s.notificationService.ShowImmediate(c.Request.Context(), req.Title, req.Body); err != nil {
		s.handleError(c, apperrors.NewNotifierError("send test notification", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test notification sent"})
}

func (s *Server) pendingNotifications(c *gin.Context) {
	count, err := s.notificationService.PendingCount()
	if err != nil {
		s.handleError(c, apperrors.NewDatabaseError("count pending notifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": count})
}

func (s *Server) cancelNotifications(c *gin.Context) {
	if err := s.notificationService.CancelAll(); err != nil {
		s.handleError(c, apperrors.NewDatabaseError("cancel notifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications cancelled"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) reconcileReminders(bucket models.TimezoneBucket, lang string) {
	prefs, err := s.settingsService.Get()
	if err != nil {
		slog.Error("skipping reminder reconciliation, preferences unavailable", "error", err)
		return
	}
	if !prefs.NotificationsEnabled {
		if err := s.notificationService.CancelAll(); err != nil {
			slog.Error("failed to cancel reminders with notifications disabled", "error", err)
		}
		return
	}
	s.notificationService.RescheduleAll(bucket, prefs.EnabledReminderTypes(), lang)
}

// requestBucket determines the bucket for a request: explicit tz query first,
// stored preference otherwise.
func (s *Server) requestBucket(c *gin.Context) (models.TimezoneBucket, bool) {
	if tz := c.Query("tz"); tz != "" {
		bucket := models.TimezoneBucket(tz)
		if !bucket.Valid() {
			s.handleError(c, apperrors.NewValidationError(fmt.Sprintf("unsupported timezone bucket %q", tz)))
			return "", false
		}
		return bucket, true
	}

	prefs, err := s.settingsService.Get()
	if err != nil {
		s.handleError(c, err)
		return "", false
	}
	return prefs.CurrentTimezoneBucket, true
}
