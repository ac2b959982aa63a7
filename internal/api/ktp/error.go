package ktp

import (
	"SentraKTP/pkg/response"
	"net/http"
)

var (
	ErrInvalidImage        = response.NewError(http.StatusBadRequest, "invalid image")
	ErrNoFrame             = response.NewError(http.StatusConflict, "no frame received yet")
	ErrCardNotDetected     = response.NewError(http.StatusUnprocessableEntity, "KTP not detected, point the card at the camera")
	ErrOCRFailed           = response.NewError(http.StatusBadGateway, "OCR error")
	ErrServiceBusy         = response.NewError(http.StatusServiceUnavailable, "extraction capacity exhausted, try again")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
