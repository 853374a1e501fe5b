// definitions.go
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

package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/definition"
	"github.com/localnerve/casedocs/internal/utils"
)

// DefinitionHandler handles definition registry routes
type DefinitionHandler struct {
	Registry *definition.Registry
}

type deployRequest struct {
	Schema   json.RawMessage `json:"schema"`
	ReadOnly bool            `json:"readOnly"`
	Force    bool            `json:"force"`
}

// Deploy handles POST /api/definitions
// The definition name is derived from the schema's declared $id, never from
// the request URL.
func (h *DefinitionHandler) Deploy(c *fiber.Ctx) error {
	var req deployRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "deployDefinition")
	}
	if len(req.Schema) == 0 {
		return utils.ErrorResponse(c, "schema is required", fiber.StatusBadRequest, "deployDefinition")
	}

	result := h.Registry.Deploy(c.UserContext(), req.Schema, req.ReadOnly, req.Force)
	if result.Failed() {
		return handleError(c, result.Errors[0], "deployDefinition")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"name":    result.Definition.Name,
		"version": result.Definition.Version,
	})
}

// Undeploy handles DELETE /api/definitions/:name
// Removes the definition and everything scoped to its name.
func (h *DefinitionHandler) Undeploy(c *fiber.Ctx) error {
	result := h.Registry.Undeploy(c.UserContext(), c.Params("name"))
	if result.Failed() {
		return handleError(c, result.Errors[0], "undeployDefinition")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// List handles GET /api/definitions
// Returns the latest version of every definition readable by the caller.
func (h *DefinitionHandler) List(c *fiber.Ctx) error {
	defs, err := h.Registry.FindAll(c.UserContext())
	if err != nil {
		return handleError(c, err, "listDefinitions")
	}
	return utils.SuccessResponse(c, defs, fiber.StatusOK)
}

// GetLatest handles GET /api/definitions/:name
func (h *DefinitionHandler) GetLatest(c *fiber.Ctx) error {
	def, err := h.Registry.FindLatest(c.UserContext(), c.Params("name"))
	if err != nil {
		return handleError(c, err, "getDefinition")
	}
	return utils.SuccessResponse(c, def, fiber.StatusOK)
}

// GetVersion handles GET /api/definitions/:name/versions/:version
func (h *DefinitionHandler) GetVersion(c *fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return utils.ErrorResponse(c, "invalid version", fiber.StatusBadRequest, "getDefinitionVersion")
	}
	def, err := h.Registry.FindByNameAndVersion(c.UserContext(), c.Params("name"), version)
	if err != nil {
		return handleError(c, err, "getDefinitionVersion")
	}
	return utils.SuccessResponse(c, def, fiber.StatusOK)
}

// ValidatePath handles GET /api/definitions/:name/path?q=...
// Checks a query path expression against the latest schema version.
func (h *DefinitionHandler) ValidatePath(c *fiber.Ctx) error {
	pathExpr := c.Query("q")
	if pathExpr == "" {
		return utils.ErrorResponse(c, "q is required", fiber.StatusBadRequest, "validatePath")
	}
	if err := h.Registry.ValidateQueryPath(c.UserContext(), c.Params("name"), pathExpr); err != nil {
		return handleError(c, err, "validatePath")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"path": pathExpr, "valid": true})
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

// PutRoles handles PUT /api/definitions/:name/roles
// Replaces the complete role set of the definition.
func (h *DefinitionHandler) PutRoles(c *fiber.Ctx) error {
	var req rolesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "putRoles")
	}
	if err := h.Registry.PutRoles(c.UserContext(), c.Params("name"), req.Roles); err != nil {
		return handleError(c, err, "putRoles")
	}
	return utils.MutationSuccessResponse(c, int64(len(req.Roles)))
}

// GetRoles handles GET /api/definitions/:name/roles
func (h *DefinitionHandler) GetRoles(c *fiber.Ctx) error {
	roles, err := h.Registry.GetRoles(c.UserContext(), c.Params("name"))
	if err != nil {
		return handleError(c, err, "getRoles")
	}
	return utils.SuccessResponse(c, fiber.Map{"roles": roles}, fiber.StatusOK)
}

type statusRequest struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Visible bool   `json:"visible"`
}

// CreateStatus handles POST /api/definitions/:name/statuses
func (h *DefinitionHandler) CreateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createStatus")
	}
	status, err := h.Registry.CreateStatus(c.UserContext(), c.Params("name"), req.Key, req.Title, req.Visible)
	if err != nil {
		return handleError(c, err, "createStatus")
	}
	return c.Status(fiber.StatusCreated).JSON(status)
}

// UpdateStatus handles PUT /api/definitions/:name/statuses/:key
func (h *DefinitionHandler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "updateStatus")
	}
	err := h.Registry.UpdateStatus(c.UserContext(), c.Params("name"), c.Params("key"), req.Title, req.Visible)
	if err != nil {
		return handleError(c, err, "updateStatus")
	}
	return utils.MutationSuccessResponse(c, 1)
}

type reorderRequest struct {
	Keys []string `json:"keys"`
}

// ReorderStatuses handles PUT /api/definitions/:name/statuses
func (h *DefinitionHandler) ReorderStatuses(c *fiber.Ctx) error {
	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "reorderStatuses")
	}
	if err := h.Registry.ReorderStatuses(c.UserContext(), c.Params("name"), req.Keys); err != nil {
		return handleError(c, err, "reorderStatuses")
	}
	return utils.MutationSuccessResponse(c, int64(len(req.Keys)))
}

// DeleteStatus handles DELETE /api/definitions/:name/statuses/:key
func (h *DefinitionHandler) DeleteStatus(c *fiber.Ctx) error {
	if err := h.Registry.DeleteStatus(c.UserContext(), c.Params("name"), c.Params("key")); err != nil {
		return handleError(c, err, "deleteStatus")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// ListStatuses handles GET /api/definitions/:name/statuses
func (h *DefinitionHandler) ListStatuses(c *fiber.Ctx) error {
	statuses, err := h.Registry.ListStatuses(c.UserContext(), c.Params("name"))
	if err != nil {
		return handleError(c, err, "listStatuses")
	}
	return utils.SuccessResponse(c, statuses, fiber.StatusOK)
}
