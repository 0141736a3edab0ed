package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tribune/internal/audit"
	"tribune/internal/handlers"
	"tribune/internal/logger"
	"tribune/internal/middleware"
	"tribune/internal/models"
	"tribune/internal/validator"
)

const testOpsKey = "integration-ops-key"

// testApp holds the full audit stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Recorder *audit.Recorder
	Router   *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates the full stack backed by an isolated in-memory SQLite,
// wired the same way the server binary wires it.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	store := audit.NewGormStore(db)
	recorder := audit.NewRecorder(store, audit.RecorderConfig{QueueCapacity: 256})
	recorder.Start()
	t.Cleanup(recorder.Stop)

	service := audit.NewService(db, recorder, audit.ServiceConfig{PurgeBatchSize: 50})
	handler := handlers.NewAuditHandler(service, recorder, 365*24*time.Hour)

	opsHash, err := bcrypt.GenerateFromPassword([]byte(testOpsKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash ops key: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1/audit")

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware())
	protected.GET("/events", handler.QueryEvents)
	protected.GET("/events/export", handler.ExportEvents)
	protected.GET("/diagnostics", handler.Diagnostics)

	ops := v1.Group("")
	ops.Use(middleware.OpsKeyMiddleware(string(opsHash)))
	ops.POST("/purge", handler.Purge)

	return &testApp{DB: db, Recorder: recorder, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// opsRequest makes a request authenticated with the operations key.
func (app *testApp) opsRequest(method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Ops-Key", key)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// tenantToken mints an access token pinned to the given org.
func tenantToken(t *testing.T, userID, orgID string) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(userID, "Test User", orgID, "member")
	if err != nil {
		t.Fatalf("failed to mint tenant token: %v", err)
	}
	return token
}

// platformToken mints an access token with cross-tenant privileges.
func platformToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken("platform-admin", "Platform Admin", "", middleware.PlatformRole)
	if err != nil {
		t.Fatalf("failed to mint platform token: %v", err)
	}
	return token
}

// record writes an event through the synchronous path so tests observe it
// immediately.
func (app *testApp) record(t *testing.T, orgID, actorID, resourceID string) {
	t.Helper()

	event, err := audit.NewEvent(models.ActionCreated, models.ResourceProposal, resourceID).
		Actor(audit.Actor{ID: actorID, Name: "Test User"}).
		Org(orgID, "Org "+orgID).
		Build()
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	app.Recorder.LogSync(context.Background(), event)
}

// recordAt seeds an event with an explicit timestamp directly in the store,
// for retention scenarios.
func (app *testApp) recordAt(t *testing.T, orgID, resourceID string, ts time.Time) {
	t.Helper()

	event, err := audit.NewEvent(models.ActionCreated, models.ResourceProposal, resourceID).
		Org(orgID, "Org "+orgID).
		Build()
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	event.Timestamp = ts.UTC()
	if err := app.DB.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
}
