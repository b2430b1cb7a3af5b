package models

import "github.com/google/uuid"

// ensureID assigns a v4 id before insert so sqlite, which has no
// gen_random_uuid(), behaves like postgres.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
