package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamType identifies how a room's stream is played.
type StreamType string

const (
	// StreamTypeYouTube is a YouTube watch URL rendered through the platform's live embed.
	StreamTypeYouTube StreamType = "youtube"
	// StreamTypeHLS is a generic .m3u8 manifest stream.
	StreamTypeHLS StreamType = "hls"
	// StreamTypeEmbed is an arbitrary iframe-embeddable page.
	StreamTypeEmbed StreamType = "embed"
)

// ValidStreamType reports whether s is a known stream type.
func ValidStreamType(s StreamType) bool {
	switch s {
	case StreamTypeYouTube, StreamTypeHLS, StreamTypeEmbed:
		return true
	}
	return false
}

// Room is a configured stream slot owned by exactly one company.
// An empty StreamURL means the slot is not configured yet.
type Room struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  string     `json:"company_id"`
	Name       string     `json:"name"`
	StreamURL  string     `json:"stream_url"`
	StreamType StreamType `json:"stream_type"`
	IsActive   bool       `json:"is_active"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	AutoStart  bool       `json:"auto_start"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
