package api

import "time"

// Object каноническое представление объекта холста на проводе
type Object struct {
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Properties map[string]any `json:"properties"`
	ID         string         `json:"id"`
	CanvasID   string         `json:"canvas_id"`
	ObjectType string         `json:"object_type"`
	CreatedBy  string         `json:"created_by,omitempty"`
	Version    int64          `json:"version"`
}

// CreateObjectRequest тело POST /canvases/{canvasID}/objects.
// ID может быть назначен клиентом, чтобы проверка подтверждения
// могла найти объект даже без ответа сервера.
type CreateObjectRequest struct {
	Properties  map[string]any `json:"properties"`
	ID          string         `json:"id,omitempty"`
	ObjectType  string         `json:"object_type"`
	OperationID string         `json:"operation_id,omitempty"`
}

// UpdateObjectRequest тело PUT /canvases/{canvasID}/objects/{objectID}.
// Properties заменяют свойства объекта целиком.
type UpdateObjectRequest struct {
	Properties  map[string]any `json:"properties"`
	OperationID string         `json:"operation_id,omitempty"`
	BaseVersion int64          `json:"base_version,omitempty"`
}

// ListObjectsResponse ответ GET /canvases/{canvasID}/objects
type ListObjectsResponse struct {
	Objects []Object `json:"objects"`
}
