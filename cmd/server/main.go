// main.go
//
// A document definition and document search data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of casedocs.
// casedocs is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// casedocs is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with casedocs.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/localnerve/casedocs/data"
	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/config"
	"github.com/localnerve/casedocs/internal/database"
	"github.com/localnerve/casedocs/internal/definition"
	"github.com/localnerve/casedocs/internal/document"
	"github.com/localnerve/casedocs/internal/handlers"
	"github.com/localnerve/casedocs/internal/middleware"
	"github.com/localnerve/casedocs/internal/outbox"
	"github.com/localnerve/casedocs/internal/sequence"
	"github.com/localnerve/casedocs/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire the core services
	events, err := outbox.New(logger)
	if err != nil {
		log.Fatalf("Failed to create event outbox: %v", err)
	}
	for _, t := range []outbox.EventType{outbox.DefinitionDeployed, outbox.DefinitionUndeployed} {
		events.Subscribe(t, func(_ context.Context, ev outbox.CaseEvent) error {
			logger.Info("definition lifecycle",
				zap.String("type", string(ev.Type)),
				zap.String("definition", ev.DefinitionName),
				zap.String("actor", ev.Actor))
			return nil
		})
	}
	access := authz.RoleBased{}
	allocator := sequence.NewAllocator(db, logger)
	registry := definition.NewRegistry(db, access, events, allocator, nil,
		definition.FSLoader{FS: data.Schemas, Glob: cfg.SchemaGlob}, logger)
	docs := document.NewService(db, registry, allocator, access, events, nil, logger,
		document.WithModifyTimeout(cfg.ModifyTimeout),
		document.WithSearchTimeout(cfg.SearchTimeout))
	registry.SetDocumentRemover(docs)

	// Deploy the bundled schema resources, as the service account
	if cfg.DeployOnStart {
		ctx := authz.WithUser(context.Background(), authz.User{
			ID:    "system",
			Roles: []string{authz.RoleAdmin},
		})
		for _, result := range registry.DeployAll(ctx) {
			if result.Failed() {
				logger.Warn("startup deploy skipped", zap.Errors("errors", result.Errors))
			}
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("casedocs")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Health probe
	app.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, db)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.APIVersion())
	api.Use(middleware.UserContext())

	definitionHandler := &handlers.DefinitionHandler{Registry: registry}
	documentHandler := &handlers.DocumentHandler{Service: docs}

	// Definition registry routes (deploy/undeploy are admin-only)
	api.Post("/definitions", middleware.RequireAdmin(), definitionHandler.Deploy)
	api.Get("/definitions", middleware.RequireUser(), definitionHandler.List)
	api.Get("/definitions/:name", middleware.RequireUser(), definitionHandler.GetLatest)
	api.Delete("/definitions/:name", middleware.RequireAdmin(), definitionHandler.Undeploy)
	api.Get("/definitions/:name/versions/:version", middleware.RequireUser(), definitionHandler.GetVersion)
	api.Get("/definitions/:name/path", middleware.RequireUser(), definitionHandler.ValidatePath)
	api.Put("/definitions/:name/roles", middleware.RequireAdmin(), definitionHandler.PutRoles)
	api.Get("/definitions/:name/roles", middleware.RequireUser(), definitionHandler.GetRoles)
	api.Post("/definitions/:name/statuses", middleware.RequireAdmin(), definitionHandler.CreateStatus)
	api.Get("/definitions/:name/statuses", middleware.RequireUser(), definitionHandler.ListStatuses)
	api.Put("/definitions/:name/statuses", middleware.RequireAdmin(), definitionHandler.ReorderStatuses)
	api.Put("/definitions/:name/statuses/:key", middleware.RequireAdmin(), definitionHandler.UpdateStatus)
	api.Delete("/definitions/:name/statuses/:key", middleware.RequireAdmin(), definitionHandler.DeleteStatus)

	// Document store routes
	api.Post("/documents/:definition", middleware.RequireUser(), documentHandler.Create)
	api.Get("/documents/:definition", middleware.RequireUser(), documentHandler.ListByName)
	api.Post("/documents/:definition/search", middleware.RequireUser(), documentHandler.Search)
	api.Post("/documents/:definition/count", middleware.RequireUser(), documentHandler.Count)
	api.Get("/document/:id", middleware.RequireUser(), documentHandler.Get)
	api.Put("/document/:id", middleware.RequireUser(), documentHandler.Replace)
	api.Patch("/document/:id", middleware.RequireUser(), documentHandler.Patch)
	api.Put("/document/:id/assignee", middleware.RequireUser(), documentHandler.Assign)
	api.Delete("/document/:id/assignee", middleware.RequireUser(), documentHandler.Unassign)
	api.Put("/document/:id/status", middleware.RequireUser(), documentHandler.SetStatus)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	// Start server
	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	logger.Info("server stopped")
}
