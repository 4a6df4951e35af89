package models

import "time"

// Document represents an archived document in the system
type Document struct {
	ID             int64     `json:"-"`                         // Internal primary key
	UUID           string    `json:"id"`                        // Public-facing identifier
	Title          string    `json:"title"`                     // Document title
	Text           string    `json:"text"`                      // Extracted full text
	Facets         []string  `json:"facets"`                    // Free-form keyword labels
	CollectionID   *int64    `json:"-"`                         // Internal collection key
	CollectionUUID *string   `json:"collection_id,omitempty"`   // Public collection identifier
	CollectionName *string   `json:"collection_name,omitempty"` // Denormalized collection name
	SizeBytes      int64     `json:"size_bytes"`                // Size of the original file, 0 when absent
	OriginalKey    *string   `json:"-"`                         // Object storage key for the original file
	ContentType    *string   `json:"content_type,omitempty"`    // Content type of the original file
	CreatedAt      time.Time `json:"created_at"`                // Creation timestamp
	UpdatedAt      time.Time `json:"updated_at"`                // Last update timestamp
}

// DocumentSearchRecord is the projection of a document stored in the search index.
type DocumentSearchRecord struct {
	ID             int64     `json:"id"`
	UUID           string    `json:"uuid"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	Facets         []string  `json:"facets,omitempty"`
	CollectionUUID *string   `json:"collection_uuid,omitempty"`
	CollectionName *string   `json:"collection_name,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToSearchRecord projects the document into its indexed form.
func (d *Document) ToSearchRecord() *DocumentSearchRecord {
	return &DocumentSearchRecord{
		ID:             d.ID,
		UUID:           d.UUID,
		Title:          d.Title,
		Text:           d.Text,
		Facets:         d.Facets,
		CollectionUUID: d.CollectionUUID,
		CollectionName: d.CollectionName,
		SizeBytes:      d.SizeBytes,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// ToModel lifts an indexed record back into the domain shape. Fields not stored
// in the index (original file key, content type) stay unset.
func (r *DocumentSearchRecord) ToModel() *Document {
	return &Document{
		ID:             r.ID,
		UUID:           r.UUID,
		Title:          r.Title,
		Text:           r.Text,
		Facets:         r.Facets,
		CollectionUUID: r.CollectionUUID,
		CollectionName: r.CollectionName,
		SizeBytes:      r.SizeBytes,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
