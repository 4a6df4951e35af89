package models

import "time"

// Collection groups documents under a shared label
type Collection struct {
	ID        int64     `json:"-"`          // Internal primary key
	UUID      string    `json:"id"`         // Public-facing identifier
	Name      string    `json:"name"`       // Collection name, unique
	CreatedAt time.Time `json:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp
}

// ToCacheFields flattens the collection into a Redis hash.
func (c *Collection) ToCacheFields() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"uuid":       c.UUID,
		"name":       c.Name,
		"created_at": c.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": c.UpdatedAt.Format(time.RFC3339Nano),
	}
}
