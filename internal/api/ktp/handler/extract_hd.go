package ktpHandler

import (
	"SentraKTP/internal/api/ktp"
	contextPkg "SentraKTP/pkg/context"
	"SentraKTP/pkg/handlerUtil"
	jwtPkg "SentraKTP/pkg/jwt"
	"SentraKTP/pkg/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

// ExtractKTP accepts either a multipart "image" file or a JSON body with
// image_base64. Setting detect crops the image to the detected card first.
func (h *KTPHandler) ExtractKTP(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.WithRequestID(contextPkg.FromFiberCtx(ctx), requestID), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	client, err := jwtPkg.GetClientLoginData(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_client_login_data")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"client_id":  client.ID,
	}).Debug("Processing KTP extraction request")

	var image []byte
	var detect bool

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		image, err = h.utils.ReadImageFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image_file")
		}
		detect = ctx.FormValue("detect") == "true"
	} else {
		var req ktp.ExtractRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		image, err = h.utils.DecodeBase64Image(req.ImageBase64)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_base64")
		}
		detect = req.Detect
	}

	result, err := h.ktpService.Extract(c, image, detect)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "extract_ktp")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":   requestID,
			"path":         ctx.Path(),
			"client_id":    client.ID,
			"completeness": result.Completeness,
		}).Info("KTP extraction successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}
