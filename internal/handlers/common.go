// common.go
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
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casedocs/internal/search"
	"github.com/localnerve/casedocs/internal/types"
	"github.com/localnerve/casedocs/internal/utils"
)

// ErrorHandler is the app-level fiber error handler. It understands the
// transport-facing CustomError the middleware raises; anything else falls
// back to a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	var custom *types.CustomError
	if errors.As(err, &custom) {
		code = custom.Code
		message = custom.Message
		errorType = custom.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// handleError translates the service error classification into a transport
// status. Storage details stay wrapped inside, so errors.Is matching works
// regardless of which layer produced the error.
func handleError(c *fiber.Ctx, err error, errorType string) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, types.ErrAccessDenied):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, errorType)
	case errors.Is(err, types.ErrReadOnly), errors.Is(err, types.ErrConflict):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, errorType)
	case errors.Is(err, types.ErrAlreadyDeployed):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, errorType)
	case errors.Is(err, types.ErrContention):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusServiceUnavailable, errorType)
	case types.IsValidation(err):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, errorType)
	default:
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
	}
}

// parsePage reads the page/size query parameters. Absent parameters mean an
// unpaged request.
func parsePage(c *fiber.Ctx) (*search.Page, error) {
	sizeStr := c.Query("size")
	if sizeStr == "" {
		return nil, nil
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		return nil, types.NewValidationError("invalid page size %q", sizeStr)
	}
	number := 0
	if numberStr := c.Query("page"); numberStr != "" {
		number, err = strconv.Atoi(numberStr)
		if err != nil || number < 0 {
			return nil, types.NewValidationError("invalid page number %q", numberStr)
		}
	}
	return &search.Page{Number: number, Size: size}, nil
}
