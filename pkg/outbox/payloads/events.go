package payloads

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationSubmittedEvent is emitted when someone asks for an account.
type RegistrationSubmittedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	RequestedBy string    `json:"requested_by"`
	RequestDate time.Time `json:"request_date"`
}

// RegistrationApprovedEvent carries the account created from the request.
type RegistrationApprovedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ApprovedBy string    `json:"approved_by"`
}

type RegistrationRejectedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	RejectedBy string    `json:"rejected_by"`
}

// SongUploadedEvent announces a new catalog entry.
type SongUploadedEvent struct {
	SongID    uuid.UUID `json:"song_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	GenreID   uuid.UUID `json:"genre_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
}

type SongDeletedEvent struct {
	SongID   uuid.UUID `json:"song_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	FilePath string    `json:"file_path"`
}

// AccountDeletedEvent lists the song files removed with the account.
type AccountDeletedEvent struct {
	AccountID    uuid.UUID   `json:"account_id"`
	Username     string      `json:"username"`
	DeletedSongs []uuid.UUID `json:"deleted_songs"`
}
