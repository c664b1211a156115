package models

import "github.com/iudanet/canvassync/pkg/api"

// ObjectFromAPI преобразует DTO в доменную модель
func ObjectFromAPI(o api.Object) *CanvasObject {
	return &CanvasObject{
		ID:         o.ID,
		CanvasID:   o.CanvasID,
		ObjectType: ObjectType(o.ObjectType),
		Properties: Properties(o.Properties).Clone(),
		Version:    o.Version,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		CreatedBy:  o.CreatedBy,
	}
}

// ToAPI преобразует доменную модель в DTO
func (o *CanvasObject) ToAPI() api.Object {
	return api.Object{
		ID:         o.ID,
		CanvasID:   o.CanvasID,
		ObjectType: string(o.ObjectType),
		Properties: o.Properties.Clone(),
		Version:    o.Version,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		CreatedBy:  o.CreatedBy,
	}
}
