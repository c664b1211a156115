// Package state хранит видимое приложению состояние объектов холста.
// Это единственный источник истины для UI: оптимистичные значения
// применяются сразу и заменяются итоговым состоянием после согласования.
package state

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/pubsub"
)

// ChangeKind источник изменения состояния
type ChangeKind string

const (
	ChangeOptimistic ChangeKind = "optimistic" // локальное применение до подтверждения
	ChangeSettled    ChangeKind = "settled"    // итоговое состояние после согласования
	ChangeRemote     ChangeKind = "remote"     // изменение от другого участника
	ChangeLoaded     ChangeKind = "loaded"     // загрузка снимка
)

// Change событие изменения объекта. Object == nil означает удаление.
type Change struct {
	Object   *models.CanvasObject
	Kind     ChangeKind
	ObjectID string
}

type entry struct {
	object  *models.CanvasObject
	version int64
	deleted bool // надгробие: не дает старым удаленным изменениям воскресить объект
}

type stashed struct {
	object  *models.CanvasObject
	version int64
	deleted bool
}

// Store потокобезопасный кеш объектов
type Store struct {
	elements map[string]*entry
	stash    map[string]*stashed
	pending  mapset.Set[string]
	bus      *pubsub.Bus[Change]
	mu       sync.RWMutex
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		elements: make(map[string]*entry),
		stash:    make(map[string]*stashed),
		pending:  mapset.NewThreadUnsafeSet[string](),
		bus:      pubsub.New[Change](),
	}
}

// Subscribe подписывает на все изменения
func (s *Store) Subscribe(fn func(Change)) pubsub.Unsubscribe {
	return s.bus.Subscribe(pubsub.Wildcard, func(_ string, c Change) { fn(c) })
}

// ApplyOptimistic применяет локального кандидата (nil для удаления) и
// помечает объект ожидающим. Возвращает прежнее состояние для отката.
func (s *Store) ApplyOptimistic(objectID string, candidate *models.CanvasObject) *models.CanvasObject {
	s.mu.Lock()
	prev := s.getLocked(objectID)
	s.pending.Add(objectID)
	s.setLocked(objectID, candidate, 0)
	s.mu.Unlock()

	s.publish(ChangeOptimistic, objectID, candidate)
	return prev
}

// Settle фиксирует итоговое состояние (nil - объекта нет) и снимает
// отметку ожидания. Отложенное удаленное изменение, пришедшее во время
// ожидания, применяется, если оно новее итогового. Для удаленного
// объекта отложенные изменения отбрасываются.
func (s *Store) Settle(objectID string, final *models.CanvasObject) *models.CanvasObject {
	s.mu.Lock()
	s.pending.Remove(objectID)
	result := final.Clone()
	if st, ok := s.stash[objectID]; ok {
		delete(s.stash, objectID)
		if final != nil && st.version > final.Version {
			if st.deleted {
				result = nil
			} else {
				result = st.object
			}
		}
	}
	var version int64
	if result != nil {
		version = result.Version
	}
	s.setLocked(objectID, result, version)
	s.mu.Unlock()

	s.publish(ChangeSettled, objectID, result)
	return result.Clone()
}

// ApplyRemote применяет изменение другого участника. Для ожидающего объекта
// изменение откладывается до Settle. Возвращает true, если состояние изменилось.
func (s *Store) ApplyRemote(obj *models.CanvasObject) bool {
	if obj == nil {
		return false
	}
	s.mu.Lock()
	if s.pending.Contains(obj.ID) {
		s.stashLocked(obj.ID, obj.Clone(), obj.Version, false)
		s.mu.Unlock()
		return false
	}
	if e, ok := s.elements[obj.ID]; ok && (e.version > obj.Version || (e.deleted && e.version == obj.Version)) {
		s.mu.Unlock()
		return false
	}
	s.setLocked(obj.ID, obj, obj.Version)
	s.mu.Unlock()

	s.publish(ChangeRemote, obj.ID, obj)
	return true
}

// ApplyRemoteDelete применяет удаление другого участника
func (s *Store) ApplyRemoteDelete(objectID string, version int64) bool {
	s.mu.Lock()
	if s.pending.Contains(objectID) {
		s.stashLocked(objectID, nil, version, true)
		s.mu.Unlock()
		return false
	}
	e, ok := s.elements[objectID]
	if !ok || e.deleted || (version > 0 && e.version > version) {
		s.mu.Unlock()
		return false
	}
	s.setLocked(objectID, nil, version)
	s.mu.Unlock()

	s.publish(ChangeRemote, objectID, nil)
	return true
}

// Load заменяет содержимое хранилища снимком, не трогая ожидающие объекты
func (s *Store) Load(objects []*models.CanvasObject) {
	s.mu.Lock()
	for id, e := range s.elements {
		if !s.pending.Contains(id) && !e.deleted {
			delete(s.elements, id)
		}
	}
	for _, obj := range objects {
		if obj == nil || s.pending.Contains(obj.ID) {
			continue
		}
		s.setLocked(obj.ID, obj, obj.Version)
	}
	s.mu.Unlock()

	for _, obj := range objects {
		if obj != nil {
			s.publish(ChangeLoaded, obj.ID, obj)
		}
	}
}

// Get возвращает копию объекта или nil
func (s *Store) Get(objectID string) *models.CanvasObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(objectID)
}

// IsPending сообщает, ждет ли объект согласования
func (s *Store) IsPending(objectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Contains(objectID)
}

// List возвращает копии объектов холста, отсортированные по id.
// Пустой canvasID возвращает все объекты.
func (s *Store) List(canvasID string) []*models.CanvasObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CanvasObject, 0, len(s.elements))
	for _, e := range s.elements {
		if e.deleted || e.object == nil {
			continue
		}
		if canvasID != "" && e.object.CanvasID != canvasID {
			continue
		}
		out = append(out, e.object.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) getLocked(objectID string) *models.CanvasObject {
	e, ok := s.elements[objectID]
	if !ok || e.deleted {
		return nil
	}
	return e.object.Clone()
}

func (s *Store) setLocked(objectID string, obj *models.CanvasObject, version int64) {
	if version == 0 {
		// локальное значение или удаление без версии сохраняет известную версию
		if e, ok := s.elements[objectID]; ok {
			version = e.version
		}
	}
	if obj == nil {
		s.elements[objectID] = &entry{deleted: true, version: version}
		return
	}
	s.elements[objectID] = &entry{object: obj.Clone(), version: version}
}

func (s *Store) stashLocked(objectID string, obj *models.CanvasObject, version int64, deleted bool) {
	if cur, ok := s.stash[objectID]; ok && cur.version > version {
		return
	}
	s.stash[objectID] = &stashed{object: obj, version: version, deleted: deleted}
}

func (s *Store) publish(kind ChangeKind, objectID string, obj *models.CanvasObject) {
	s.bus.Publish(string(kind), Change{Kind: kind, ObjectID: objectID, Object: obj.Clone()})
}
