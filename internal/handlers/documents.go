// documents.go
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
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/document"
	"github.com/localnerve/casedocs/internal/search"
	"github.com/localnerve/casedocs/internal/utils"
)

// DocumentHandler handles document store routes
type DocumentHandler struct {
	Service *document.Service
}

// Create handles POST /api/documents/:definition
// The body is the raw JSON content of the new document.
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	doc, err := h.Service.Create(c.UserContext(), c.Params("definition"), c.Body())
	if err != nil {
		return handleError(c, err, "createDocument")
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// Get handles GET /api/document/:id
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	doc, err := h.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, err, "getDocument")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

// ListByName handles GET /api/documents/:definition
// Returns every document of the definition name across schema versions.
func (h *DocumentHandler) ListByName(c *fiber.Ctx) error {
	docs, err := h.Service.GetAllByName(c.UserContext(), c.Params("definition"))
	if err != nil {
		return handleError(c, err, "listDocuments")
	}
	if len(docs) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return utils.SuccessResponse(c, docs, fiber.StatusOK)
}

// Replace handles PUT /api/document/:id
// The body is the complete replacement content.
func (h *DocumentHandler) Replace(c *fiber.Ctx) error {
	doc, err := h.Service.ReplaceContent(c.UserContext(), c.Params("id"), c.Body())
	if err != nil {
		return handleError(c, err, "replaceDocument")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

// Patch handles PATCH /api/document/:id
// The body is an RFC 6902 JSON-Patch array.
func (h *DocumentHandler) Patch(c *fiber.Ctx) error {
	doc, err := h.Service.PatchContent(c.UserContext(), c.Params("id"), c.Body())
	if err != nil {
		return handleError(c, err, "patchDocument")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

type assignRequest struct {
	AssigneeID       string `json:"assigneeId"`
	AssigneeFullName string `json:"assigneeFullName"`
}

// Assign handles PUT /api/document/:id/assignee
func (h *DocumentHandler) Assign(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "assignDocument")
	}
	if req.AssigneeID == "" {
		return utils.ErrorResponse(c, "assigneeId is required", fiber.StatusBadRequest, "assignDocument")
	}
	err := h.Service.AssignTo(c.UserContext(), c.Params("id"), req.AssigneeID, req.AssigneeFullName)
	if err != nil {
		return handleError(c, err, "assignDocument")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Unassign handles DELETE /api/document/:id/assignee
func (h *DocumentHandler) Unassign(c *fiber.Ctx) error {
	if err := h.Service.Unassign(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, err, "unassignDocument")
	}
	return utils.MutationSuccessResponse(c, 1)
}

type statusChangeRequest struct {
	Key *string `json:"key"`
}

// SetStatus handles PUT /api/document/:id/status
// A null key clears the status.
func (h *DocumentHandler) SetStatus(c *fiber.Ctx) error {
	var req statusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "setDocumentStatus")
	}
	if err := h.Service.SetInternalStatus(c.UserContext(), c.Params("id"), req.Key); err != nil {
		return handleError(c, err, "setDocumentStatus")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Search handles POST /api/documents/:definition/search?page=N&size=M
// The body is an AdvancedSearchRequest; pagination rides the query string.
func (h *DocumentHandler) Search(c *fiber.Ctx) error {
	var req search.AdvancedSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "searchDocuments")
	}
	if err := req.Validate(); err != nil {
		return handleError(c, err, "searchDocuments")
	}
	page, err := parsePage(c)
	if err != nil {
		return handleError(c, err, "searchDocuments")
	}

	result, err := h.Service.Search(c.UserContext(), c.Params("definition"), req, page)
	if err != nil {
		return handleError(c, err, "searchDocuments")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"documents": result.Documents,
		"total":     result.Total,
	})
}

// Count handles POST /api/documents/:definition/count
// Runs the identical predicate construction and returns only the total.
func (h *DocumentHandler) Count(c *fiber.Ctx) error {
	var req search.AdvancedSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "countDocuments")
	}
	if err := req.Validate(); err != nil {
		return handleError(c, err, "countDocuments")
	}
	total, err := h.Service.Count(c.UserContext(), c.Params("definition"), req)
	if err != nil {
		return handleError(c, err, "countDocuments")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"total": total})
}
