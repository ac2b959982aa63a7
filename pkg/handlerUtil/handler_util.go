package handlerUtil

import (
	"SentraKTP/internal/api/ktp"
	"SentraKTP/pkg/log"
	"SentraKTP/pkg/ocr"
	"SentraKTP/pkg/response"
	"SentraKTP/pkg/utils"
	"errors"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

var ktpErrorCodes = []struct {
	err  error
	code string
}{
	{ktp.ErrInvalidImage, "INVALID_IMAGE"},
	{ktp.ErrNoFrame, "NO_FRAME"},
	{ktp.ErrCardNotDetected, "KTP_NOT_DETECTED"},
	{ktp.ErrOCRFailed, "OCR_PREDICT_FAILED"},
	{ktp.ErrServiceBusy, "SERVICE_BUSY"},
	{ktp.ErrInternalServerError, "INTERNAL_SERVER_ERROR"},
}

// Code returns the machine readable code of a KTP domain error, or "" when
// err is not one.
func Code(err error) string {
	for _, c := range ktpErrorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  Code(err),
		})
	}

	var predictErr *ocr.OCRPredictError
	if errors.As(err, &predictErr) {
		fields["engine"] = predictErr.Engine
		h.logger.WithFields(fields).Error("OCR engine failed")
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: "OCR error: " + predictErr.Error(),
			Code:  "OCR_PREDICT_FAILED",
		})
	}

	if errors.Is(err, utils.ErrFileTooLarge) {
		h.logger.WithFields(fields).Warn("File too large")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "File too large. Maximum size is 5MB.",
			Code:  "FILE_TOO_LARGE",
		})
	}

	if errors.Is(err, utils.ErrNotImage) || errors.Is(err, utils.ErrNoFile) || errors.Is(err, utils.ErrEmptyImage) {
		h.logger.WithFields(fields).Warn("Invalid file type")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Invalid file. Only images are allowed.",
			Code:  "INVALID_IMAGE",
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: fiberErr.Message,
		})
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		Details: "trace id " + traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: fiberUtils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
