package ktpHandler

import (
	"SentraKTP/internal/api/ktp"
	contextPkg "SentraKTP/pkg/context"
	"SentraKTP/pkg/handlerUtil"
	"SentraKTP/pkg/log"
	"errors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
	"time"
)

const (
	maxReadTimeout = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

// handleCaptureWebSocket runs one capture session. Binary messages are
// camera frames; text messages are JSON commands. All writes happen on this
// goroutine.
func (h *KTPHandler) handleCaptureWebSocket(c *websocket.Conn) {
	sessionID, err := h.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		h.log.Errorf("Error creating capture session id: %v", err)
		return
	}

	ctx := contextPkg.WithSessionID(contextPkg.WithRequestID(context.Background(), sessionID), sessionID)
	logger := h.log.WithField("session_id", sessionID)

	logger.Info("KTP capture WebSocket client connected")
	defer func() {
		h.ktpService.EndSession(ctx, sessionID)
		logger.Info("KTP capture WebSocket client disconnected")
	}()

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	if err := h.send(c, ktp.Event{
		Event:     ktp.EventConnected,
		SessionID: sessionID,
		Message:   "Ready to receive frames.",
	}); err != nil {
		logger.Errorf("Error sending greeting: %v", err)
		return
	}

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("KTP WebSocket error: %v", err)
			} else {
				logger.Debug("KTP WebSocket connection closed")
			}
			break
		}

		var event *ktp.Event
		switch messageType {
		case websocket.BinaryMessage:
			event = h.handleFrame(ctx, sessionID, message)
		case websocket.TextMessage:
			event = h.handleCommand(ctx, c, sessionID, message)
		default:
			logger.Warnf("Received unexpected message type: %d", messageType)
		}

		if event == nil {
			continue
		}
		if err := h.send(c, *event); err != nil {
			logger.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func (h *KTPHandler) handleFrame(ctx context.Context, sessionID string, frame []byte) *ktp.Event {
	event, err := h.ktpService.ProcessFrame(ctx, sessionID, frame)
	if err != nil {
		h.log.WithFields(log.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Error processing KTP frame")
		return nil
	}
	return event
}

func (h *KTPHandler) handleCommand(ctx context.Context, c *websocket.Conn, sessionID string, message []byte) *ktp.Event {
	var cmd ktp.Command
	if err := jsoniter.Unmarshal(message, &cmd); err != nil {
		return &ktp.Event{Event: ktp.EventError, Reason: "invalid command"}
	}

	switch cmd.Event {
	case ktp.CommandPing:
		return &ktp.Event{Event: ktp.EventPong}
	case ktp.CommandCapture:
		return h.capture(ctx, c, sessionID)
	default:
		return &ktp.Event{Event: ktp.EventError, Reason: "unknown command " + cmd.Event}
	}
}

func (h *KTPHandler) capture(ctx context.Context, c *websocket.Conn, sessionID string) *ktp.Event {
	if err := h.send(c, ktp.Event{
		Event:   ktp.EventCaptureProcessing,
		Message: "Running OCR...",
	}); err != nil {
		return nil
	}

	capCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, err := h.ktpService.Capture(capCtx, sessionID)
	if err != nil {
		h.log.WithFields(log.Fields{
			"session_id": sessionID,
			"code":       handlerUtil.Code(err),
			"error":      err.Error(),
		}).Warn("Capture failed")
		return &ktp.Event{Event: ktp.EventCaptureFailed, Reason: captureFailureReason(err)}
	}

	h.log.WithFields(log.Fields{
		"session_id":   sessionID,
		"completeness": result.Completeness,
	}).Info("Capture finished")

	event := ktp.ResultEvent(result)
	return &event
}

func captureFailureReason(err error) string {
	switch {
	case errors.Is(err, ktp.ErrNoFrame):
		return "No frame received yet."
	case errors.Is(err, ktp.ErrCardNotDetected):
		return "KTP not detected yet. Point the card at the camera."
	default:
		return err.Error()
	}
}

func (h *KTPHandler) send(c *websocket.Conn, event ktp.Event) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return err
	}
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}
