package dtos

import (
	"github.com/carverlane/archivist/server/models"
)

type CollectionCreateRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

func (r *CollectionCreateRequest) ToModel() *models.Collection {
	return &models.Collection{
		Name: r.Name,
	}
}

type CollectionUpdateRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1"`
}

func (r *CollectionUpdateRequest) UpdateModel(collection *models.Collection) {
	if r.Name != nil {
		collection.Name = *r.Name
	}
}
