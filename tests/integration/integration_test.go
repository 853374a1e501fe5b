package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/config"
	"github.com/localnerve/casedocs/internal/database"
	"github.com/localnerve/casedocs/internal/definition"
	"github.com/localnerve/casedocs/internal/document"
	"github.com/localnerve/casedocs/internal/search"
	"github.com/localnerve/casedocs/internal/sequence"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const personSchema = `{
	"$id": "https://example.org/person.schema.json",
	"type": "object",
	"properties": {
		"firstName": {"type": "string"},
		"lastName": {"type": "string"},
		"age": {"type": "integer"},
		"address": {
			"type": "object",
			"properties": {
				"street": {"type": "string"},
				"city": {"type": "string"}
			}
		}
	},
	"required": ["firstName", "lastName"]
}`

// TestWithPostgreSQL exercises the full stack against a real PostgreSQL
// container: deploy, create, JSON search, undeploy cascade.
func TestWithPostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:            "postgres",
		DBHost:            host,
		DBPort:            port.Port(),
		DBDatabase:        "testdb",
		DBUser:            "testuser",
		DBPassword:        "testpass",
		DBConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(3 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	access := authz.RoleBased{}
	alloc := sequence.NewAllocator(db, nil)
	registry := definition.NewRegistry(db, access, nil, alloc, nil, nil, nil)
	docs := document.NewService(db, registry, alloc, access, nil, nil, nil)
	registry.SetDocumentRemover(docs)

	admin := authz.WithUser(context.Background(), authz.User{
		ID:    "admin-1",
		Roles: []string{authz.RoleAdmin},
	})

	t.Run("DeployAndCreate", func(t *testing.T) {
		result := registry.Deploy(admin, []byte(personSchema), false, false)
		if result.Failed() {
			t.Fatalf("Deploy failed: %v", result.Errors)
		}
		if result.Definition.Version != 1 {
			t.Errorf("Expected version 1, got %d", result.Definition.Version)
		}

		for _, content := range []string{
			`{"firstName": "Jan", "lastName": "Jansen", "age": 30, "address": {"street": "Kalverstraat", "city": "Amsterdam"}}`,
			`{"firstName": "Piet", "lastName": "de Vries", "age": 42, "address": {"street": "Damrak", "city": "Amsterdam"}}`,
			`{"firstName": "Truus", "lastName": "de Mier", "age": 17, "address": {"street": "Dorpsstraat", "city": "Utrecht"}}`,
		} {
			if _, err := docs.Create(admin, "person", []byte(content)); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}
	})

	t.Run("JSONSearch", func(t *testing.T) {
		result, err := docs.Search(admin, "person", search.AdvancedSearchRequest{
			OtherFilters: []search.OtherFilter{{
				Path:       "doc:address.city",
				SearchType: search.SearchTypeEqual,
				DataType:   search.DataTypeText,
				Values:     []any{"amsterdam"},
			}},
			Sort: []search.Sort{{Path: "doc:address.street", Direction: search.SortDesc}},
		}, nil)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if result.Total != 2 {
			t.Errorf("Expected total 2, got %d", result.Total)
		}
		if len(result.Documents) != 2 {
			t.Fatalf("Expected 2 documents, got %d", len(result.Documents))
		}
	})

	t.Run("NumericRange", func(t *testing.T) {
		total, err := docs.Count(admin, "person", search.AdvancedSearchRequest{
			OtherFilters: []search.OtherFilter{{
				Path:       "doc:age",
				SearchType: search.SearchTypeBetween,
				DataType:   search.DataTypeNumber,
				RangeFrom:  17,
				RangeTo:    30,
			}},
		})
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if total != 2 {
			t.Errorf("Expected total 2, got %d", total)
		}
	})

	t.Run("UndeployCascade", func(t *testing.T) {
		result := registry.Undeploy(admin, "person")
		if result.Failed() {
			t.Fatalf("Undeploy failed: %v", result.Errors)
		}
		remaining, err := docs.GetAllByName(admin, "person")
		if err != nil {
			t.Fatalf("GetAllByName failed: %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("Expected 0 documents after undeploy, got %d", len(remaining))
		}
	})
}
