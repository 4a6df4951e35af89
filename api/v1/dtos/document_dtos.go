package dtos

import (
	"github.com/carverlane/archivist/server/models"
	"github.com/go-playground/validator/v10"
)

var Validate = validator.New()

type DocumentCreateRequest struct {
	Title        string   `json:"title" validate:"required,min=1"`
	Text         string   `json:"text"`
	Facets       []string `json:"facets,omitempty" validate:"dive,min=1"`
	CollectionID *string  `json:"collection_id,omitempty" validate:"omitempty,uuid"`
}

func (r *DocumentCreateRequest) ToModel() *models.Document {
	document := &models.Document{
		Title:  r.Title,
		Text:   r.Text,
		Facets: r.Facets,
	}
	if r.CollectionID != nil && *r.CollectionID != "" {
		document.CollectionUUID = r.CollectionID
	}
	return document
}

type DocumentUpdateRequest struct {
	Title  *string  `json:"title,omitempty" validate:"omitempty,min=1"`
	Text   *string  `json:"text,omitempty"`
	Facets []string `json:"facets,omitempty" validate:"dive,min=1"`
	// An empty string detaches the document from its collection; nil leaves
	// the membership unchanged.
	CollectionID *string `json:"collection_id,omitempty" validate:"omitempty,uuid"`
}

func (r *DocumentUpdateRequest) UpdateModel(document *models.Document) {
	if r.Title != nil {
		document.Title = *r.Title
	}
	if r.Text != nil {
		document.Text = *r.Text
	}
	if r.Facets != nil {
		document.Facets = r.Facets
	}
	if r.CollectionID != nil {
		document.CollectionID = nil
		document.CollectionName = nil
		if *r.CollectionID == "" {
			document.CollectionUUID = nil
		} else {
			document.CollectionUUID = r.CollectionID
		}
	}
}

type DocumentListRequest struct {
	Limit         *int    `query:"limit"`
	StartingAfter *string `query:"starting_after"`
	SortBy        *string `query:"sort_by"`
	SortDirection *string `query:"sort_direction"`
	Collection    *string `query:"collection"`
}

type DocumentSortRequest struct {
	Field     string `json:"field" validate:"required,oneof=relevance created_at updated_at title size id"`
	Direction string `json:"direction" validate:"omitempty,oneof=asc desc"`
}

type DocumentSearchRequest struct {
	Term          *string               `json:"term" validate:"omitempty,min=1"`
	Facets        []string              `json:"facets,omitempty" validate:"dive,min=1"`
	FacetMode     *string               `json:"facet_mode" validate:"omitempty,oneof=any all"`
	Collection    *string               `json:"collection" validate:"omitempty,uuid"`
	Sort          []DocumentSortRequest `json:"sort,omitempty" validate:"dive"`
	Limit         *int                  `json:"limit" validate:"omitempty,min=1"`
	StartingAfter *string               `json:"starting_after" validate:"omitempty"`
}
