package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventPhotoUploaded  EventType = "photo.uploaded"
	EventAlbumUploaded  EventType = "album.uploaded"
	EventPhotoValidated EventType = "photo.validated"
	EventPhotoDeleted   EventType = "photo.deleted"
	EventAlbumDeleted   EventType = "album.deleted"
	EventPhotosPurged   EventType = "photos.purged"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// PhotoUploadedEvent is sent to moderators when a photo awaits review
type PhotoUploadedEvent struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Album    *string `json:"album"`
	Src      string  `json:"src"`
	Caption  string  `json:"caption"`
}

type AlbumUploadedEvent struct {
	Album string `json:"album"`
	Count int    `json:"count"`
}

type PhotosValidatedEvent struct {
	IDs []string `json:"ids"`
}

type PhotoDeletedEvent struct {
	Filename string  `json:"filename"`
	Album    *string `json:"album"`
}

type AlbumDeletedEvent struct {
	Album        string `json:"album"`
	DeletedCount int64  `json:"deletedCount"`
}

type PhotosPurgedEvent struct {
	DeletedCount int64 `json:"deletedCount"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
