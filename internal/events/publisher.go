package events

import (
	"github.com/alumni-connect/gallery-service/internal/types"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

// Publisher interface for publishing moderation events
type Publisher interface {
	PublishPhotoUploaded(photo gallery.Photo)
	PublishAlbumUploaded(album string, count int)
	PublishPhotosValidated(ids []string)
	PublishPhotoDeleted(filename string, album *string)
	PublishAlbumDeleted(album string, deletedCount int64)
	PublishPhotosPurged(deletedCount int64)
}

// WebSocketHub interface for the WebSocket hub
type WebSocketHub interface {
	BroadcastToAll(event *types.Event)
	GetClientCount() int
}

// EventPublisher implements the Publisher interface
type EventPublisher struct {
	hub WebSocketHub
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(hub WebSocketHub) *EventPublisher {
	return &EventPublisher{
		hub: hub,
	}
}

func (p *EventPublisher) publish(eventType types.EventType, data interface{}) {
	// Nobody is watching the moderation feed
	if p.hub.GetClientCount() == 0 {
		return
	}

	p.hub.BroadcastToAll(types.NewEvent(eventType, data))
}

// PublishPhotoUploaded tells moderators a new photo awaits review
func (p *EventPublisher) PublishPhotoUploaded(photo gallery.Photo) {
	p.publish(types.EventPhotoUploaded, &types.PhotoUploadedEvent{
		ID:       photo.ID,
		Filename: photo.Filename,
		Album:    photo.Album,
		Src:      photo.Src,
		Caption:  photo.Caption,
	})
}

func (p *EventPublisher) PublishAlbumUploaded(album string, count int) {
	p.publish(types.EventAlbumUploaded, &types.AlbumUploadedEvent{Album: album, Count: count})
}

func (p *EventPublisher) PublishPhotosValidated(ids []string) {
	p.publish(types.EventPhotoValidated, &types.PhotosValidatedEvent{IDs: ids})
}

func (p *EventPublisher) PublishPhotoDeleted(filename string, album *string) {
	p.publish(types.EventPhotoDeleted, &types.PhotoDeletedEvent{Filename: filename, Album: album})
}

func (p *EventPublisher) PublishAlbumDeleted(album string, deletedCount int64) {
	p.publish(types.EventAlbumDeleted, &types.AlbumDeletedEvent{Album: album, DeletedCount: deletedCount})
}

func (p *EventPublisher) PublishPhotosPurged(deletedCount int64) {
	p.publish(types.EventPhotosPurged, &types.PhotosPurgedEvent{DeletedCount: deletedCount})
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishPhotoUploaded(gallery.Photo) {}
func (NopPublisher) PublishAlbumUploaded(string, int) {}
func (NopPublisher) PublishPhotosValidated([]string) {}
func (NopPublisher) PublishPhotoDeleted(string, *string) {}
func (NopPublisher) PublishAlbumDeleted(string, int64) {}
func (NopPublisher) PublishPhotosPurged(int64) {}
