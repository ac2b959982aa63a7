package ktp

import (
	"SentraKTP/internal/entity"
	ktpPkg "SentraKTP/pkg/ktp"
)

type ExtractRequest struct {
	ImageBase64 string `json:"image_base64" form:"image_base64" validate:"required"`
	Detect      bool   `json:"detect" form:"detect"`
}

type ExtractResponse struct {
	Data         *ktpPkg.Record `json:"data"`
	Completeness float64        `json:"completeness"`
	Engine       string         `json:"engine"`
	DurationMs   int64          `json:"duration_ms"`
}

type EventType string

const (
	EventConnected         EventType = "connected"
	EventYoloResult        EventType = "yolo_result"
	EventNoKTP             EventType = "no_ktp"
	EventCaptureProcessing EventType = "capture_processing"
	EventCaptureFailed     EventType = "capture_failed"
	EventKTPResult         EventType = "ktp_result"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)

// Command is a text message sent by a capture client.
type Command struct {
	Event string `json:"event"`
}

const (
	CommandCapture = "capture"
	CommandPing    = "ping"
)

// Event is pushed to a capture client over the WebSocket.
type Event struct {
	Event        EventType             `json:"event"`
	SessionID    string                `json:"session_id,omitempty"`
	Message      string                `json:"message,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Boxes        []entity.DetectionBox `json:"boxes,omitempty"`
	Data         *ktpPkg.Record        `json:"data,omitempty"`
	Completeness *float64              `json:"completeness,omitempty"`
}

func ResultEvent(res *ExtractResponse) Event {
	completeness := res.Completeness
	return Event{
		Event:        EventKTPResult,
		Data:         res.Data,
		Completeness: &completeness,
	}
}
