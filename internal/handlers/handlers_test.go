package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/definition"
	"github.com/localnerve/casedocs/internal/document"
	"github.com/localnerve/casedocs/internal/handlers"
	"github.com/localnerve/casedocs/internal/middleware"
	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/sequence"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const personSchema = `{
	"$id": "https://example.org/person.schema.json",
	"type": "object",
	"properties": {
		"firstName": {"type": "string"},
		"lastName": {"type": "string"}
	},
	"required": ["firstName", "lastName"]
}`

// setupTestApp wires a Fiber app over an in-memory SQLite database
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying SQL DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.DocumentDefinition{},
		&models.DocumentDefinitionRole{},
		&models.DocumentStatus{},
		&models.SequenceRecord{},
		&models.Document{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	access := authz.RoleBased{}
	alloc := sequence.NewAllocator(db, nil)
	registry := definition.NewRegistry(db, access, nil, alloc, nil, nil, nil)
	docs := document.NewService(db, registry, alloc, access, nil, nil, nil)
	registry.SetDocumentRemover(docs)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(middleware.UserContext())

	definitionHandler := &handlers.DefinitionHandler{Registry: registry}
	documentHandler := &handlers.DocumentHandler{Service: docs}

	app.Post("/api/definitions", middleware.RequireAdmin(), definitionHandler.Deploy)
	app.Get("/api/definitions/:name", middleware.RequireUser(), definitionHandler.GetLatest)
	app.Delete("/api/definitions/:name", middleware.RequireAdmin(), definitionHandler.Undeploy)
	app.Get("/api/definitions/:name/path", middleware.RequireUser(), definitionHandler.ValidatePath)
	app.Post("/api/documents/:definition", middleware.RequireUser(), documentHandler.Create)
	app.Post("/api/documents/:definition/search", middleware.RequireUser(), documentHandler.Search)
	app.Get("/api/document/:id", middleware.RequireUser(), documentHandler.Get)

	return app
}

func deployPerson(t *testing.T, app *fiber.App) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"schema": json.RawMessage(personSchema)})
	req := httptest.NewRequest("POST", "/api/definitions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Roles", "ROLE_ADMIN")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, raw)
	}
}

// TestDeployDefinition tests the POST /api/definitions endpoint
func TestDeployDefinition(t *testing.T) {
	app := setupTestApp(t)
	deployPerson(t, app)

	req := httptest.NewRequest("GET", "/api/definitions/person", nil)
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Roles", "ROLE_ADMIN")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var def map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if def["Name"] != "person" {
		t.Errorf("Expected definition name 'person', got %v", def["Name"])
	}
}

// TestDeployRequiresAdminRole tests role gating on the deploy endpoint
func TestDeployRequiresAdminRole(t *testing.T) {
	app := setupTestApp(t)

	body, _ := json.Marshal(map[string]any{"schema": json.RawMessage(personSchema)})
	req := httptest.NewRequest("POST", "/api/definitions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Roles", "caseworker")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("Expected status 403, got %d", resp.StatusCode)
	}
}

// TestCreateAndGetDocument tests document creation and retrieval
func TestCreateAndGetDocument(t *testing.T) {
	app := setupTestApp(t)
	deployPerson(t, app)

	req := httptest.NewRequest("POST", "/api/documents/person",
		bytes.NewReader([]byte(`{"firstName": "Jan", "lastName": "Jansen"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Roles", "caseworker")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, raw)
	}

	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	id, _ := created["ID"].(string)
	if id == "" {
		t.Fatal("Expected a document ID in response")
	}

	req = httptest.NewRequest("GET", "/api/document/"+id, nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Roles", "caseworker")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

// TestCreateInvalidDocumentRejected tests schema validation on create
func TestCreateInvalidDocumentRejected(t *testing.T) {
	app := setupTestApp(t)
	deployPerson(t, app)

	req := httptest.NewRequest("POST", "/api/documents/person",
		bytes.NewReader([]byte(`{"firstName": "Jan"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestValidatePathEndpoint tests GET /api/definitions/:name/path
func TestValidatePathEndpoint(t *testing.T) {
	app := setupTestApp(t)
	deployPerson(t, app)

	req := httptest.NewRequest("GET", "/api/definitions/person/path?q=$.firstName", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/definitions/person/path?q=$.salary", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestSearchEndpoint tests POST /api/documents/:definition/search
func TestSearchEndpoint(t *testing.T) {
	app := setupTestApp(t)
	deployPerson(t, app)

	for _, content := range []string{
		`{"firstName": "Jan", "lastName": "Jansen"}`,
		`{"firstName": "Piet", "lastName": "de Vries"}`,
	} {
		req := httptest.NewRequest("POST", "/api/documents/person", bytes.NewReader([]byte(content)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "admin-1")
		req.Header.Set("X-User-Roles", "ROLE_ADMIN")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("Expected status 201, got %d", resp.StatusCode)
		}
	}

	body := []byte(`{
		"otherFilters": [
			{"path": "doc:lastName", "searchType": "LIKE", "dataType": "text", "values": ["vries"]}
		]
	}`)
	req := httptest.NewRequest("POST", "/api/documents/person/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Roles", "ROLE_ADMIN")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, raw)
	}

	var result struct {
		Total     int64            `json:"total"`
		Documents []map[string]any `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Expected total 1, got %d", result.Total)
	}
	if len(result.Documents) != 1 {
		t.Errorf("Expected 1 document, got %d", len(result.Documents))
	}
}

// TestMissingUserRejected tests that requests without a principal are refused
func TestMissingUserRejected(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("GET", "/api/definitions/person", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("Expected status 403, got %d", resp.StatusCode)
	}
}
