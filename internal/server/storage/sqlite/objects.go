package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
)

const objectColumns = `canvas_id, id, object_type, properties, version, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// CreateObject inserts a new object with version 1
func (s *Storage) CreateObject(ctx context.Context, obj *models.CanvasObject, operationID string) (*models.CanvasObject, error) {
	created := obj.Clone()
	created.Version = 1
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.UpdatedAt = created.CreatedAt
	if created.Properties == nil {
		created.Properties = models.Properties{}
	}

	props, err := json.Marshal(created.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO objects (`+objectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			created.CanvasID,
			created.ID,
			string(created.ObjectType),
			string(props),
			created.Version,
			created.CreatedBy,
			toNanos(created.CreatedAt),
			toNanos(created.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrObjectExists
			}
			return fmt.Errorf("failed to insert object: %w", err)
		}
		return recordOperation(ctx, tx, operationID, models.UpdateCreate, created.CanvasID, created.ID, created.Version, created, created.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetObject retrieves object by canvas and id
func (s *Storage) GetObject(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error) {
	return getObject(s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE canvas_id = ? AND id = ?`,
		canvasID, objectID,
	))
}

// ListObjects retrieves all objects of a canvas ordered by creation time
func (s *Storage) ListObjects(ctx context.Context, canvasID string) ([]*models.CanvasObject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE canvas_id = ? ORDER BY created_at, id`,
		canvasID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	objects := make([]*models.CanvasObject, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate objects: %w", err)
	}

	return objects, nil
}

// UpdateObject replaces object properties and increments its version
func (s *Storage) UpdateObject(
	ctx context.Context,
	canvasID, objectID string,
	props models.Properties,
	operationID string,
	at time.Time,
) (*models.CanvasObject, error) {
	if props == nil {
		props = models.Properties{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	var updated *models.CanvasObject
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getObject(tx.QueryRowContext(ctx,
			`SELECT `+objectColumns+` FROM objects WHERE canvas_id = ? AND id = ?`,
			canvasID, objectID,
		))
		if err != nil {
			return err
		}

		updated = current
		updated.Properties = props.Clone()
		updated.Version = current.Version + 1
		updated.UpdatedAt = at.UTC()

		_, err = tx.ExecContext(ctx, `
			UPDATE objects SET properties = ?, version = ?, updated_at = ?
			WHERE canvas_id = ? AND id = ?
		`, string(data), updated.Version, toNanos(updated.UpdatedAt), canvasID, objectID)
		if err != nil {
			return fmt.Errorf("failed to update object: %w", err)
		}
		return recordOperation(ctx, tx, operationID, models.UpdateUpdate, canvasID, objectID, updated.Version, updated, at)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteObject removes object and returns the version assigned to the deletion
func (s *Storage) DeleteObject(ctx context.Context, canvasID, objectID, operationID string, at time.Time) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM objects WHERE canvas_id = ? AND id = ?`,
			canvasID, objectID,
		).Scan(&version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrObjectNotFound
			}
			return fmt.Errorf("failed to get object version: %w", err)
		}
		version++

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM objects WHERE canvas_id = ? AND id = ?`,
			canvasID, objectID,
		); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
		return recordOperation(ctx, tx, operationID, models.UpdateDelete, canvasID, objectID, version, nil, at)
	})
	if err != nil {
		return 0, err
	}

	return version, nil
}

// GetOperation returns the recorded result of an operation
func (s *Storage) GetOperation(ctx context.Context, operationID string) (*storage.Operation, error) {
	op := &storage.Operation{}
	var (
		opType    string
		object    sql.NullString
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, canvas_id, object_id, type, version, object, created_at
		FROM operations
		WHERE id = ?
	`, operationID).Scan(
		&op.ID,
		&op.CanvasID,
		&op.ObjectID,
		&opType,
		&op.Version,
		&object,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	op.Type = models.UpdateType(opType)
	op.CreatedAt = fromNanos(createdAt)
	if object.Valid {
		var obj models.CanvasObject
		if err := json.Unmarshal([]byte(object.String), &obj); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation object: %w", err)
		}
		op.Object = &obj
	}

	return op, nil
}

// DeleteOperationsBefore чистит журнал операций старше cutoff
func (s *Storage) DeleteOperationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE created_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete operations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// recordOperation пишет результат мутации в журнал; пустой id не пишется
func recordOperation(
	ctx context.Context,
	tx *sql.Tx,
	operationID string,
	opType models.UpdateType,
	canvasID, objectID string,
	version int64,
	obj *models.CanvasObject,
	at time.Time,
) error {
	if operationID == "" {
		return nil
	}

	var object sql.NullString
	if obj != nil {
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("failed to marshal operation object: %w", err)
		}
		object = sql.NullString{String: string(data), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO operations (id, canvas_id, object_id, type, version, object, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, operationID, canvasID, objectID, string(opType), version, object, toNanos(at))
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

func getObject(row *sql.Row) (*models.CanvasObject, error) {
	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, err
	}
	return obj, nil
}

func scanObject(row scanner) (*models.CanvasObject, error) {
	obj := &models.CanvasObject{}
	var (
		objectType string
		props      string
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(
		&obj.CanvasID,
		&obj.ID,
		&objectType,
		&props,
		&obj.Version,
		&obj.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan object: %w", err)
	}

	if err := json.Unmarshal([]byte(props), &obj.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	obj.ObjectType = models.ObjectType(objectType)
	obj.CreatedAt = fromNanos(createdAt)
	obj.UpdatedAt = fromNanos(updatedAt)
	return obj, nil
}
