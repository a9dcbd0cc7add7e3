package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"docquery-service/internal/domain"
	"docquery-service/internal/transport/httpserver/dto"
	"docquery-service/internal/validator"
)

// Error codes returned in dto.ErrorResponse.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidParams = "INVALID_PARAMS"
	CodeUnknownEntity = "UNKNOWN_ENTITY"
	CodeQueryFailed   = "QUERY_FAILED"
	CodeTimeout       = "TIMEOUT"
	CodeInternal      = "INTERNAL_ERROR"
)

// respondError maps service errors to status codes and writes the body.
func respondError(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	var fe validator.ValidationErrors
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    CodeValidation,
			Details: ve.Messages,
		})
	case errors.As(err, &fe):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    CodeValidation,
			Details: fe.Messages(),
		})
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(dto.ErrorResponse{
			Error: fiberErr.Message,
			Code:  CodeInvalidParams,
		})
	case errors.Is(err, domain.ErrUnknownEntity):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: err.Error(),
			Code:  CodeUnknownEntity,
		})
	case errors.Is(err, domain.ErrQueryExecutionFailed):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: "query failed",
			Code:  CodeQueryFailed,
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{
			Error: "search timed out",
			Code:  CodeTimeout,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "internal server error",
			Code:  CodeInternal,
		})
	}
}

// queryParams reads the query string, keeping every value of a repeated key.
func queryParams(c *fiber.Ctx) domain.Params {
	params := domain.Params{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		params[k] = append(params[k], string(value))
	})
	return params
}
