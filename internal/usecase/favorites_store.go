package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/infrastructure/spoonacular"
	"github.com/recipebox/backend/internal/logging"
)

const (
	// FavoritesKey holds the current favorites map, id -> FavoriteRecord
	FavoritesKey = "@favorite_recipes"
	// LegacyFavoritesKey holds favorites saved by the meal-database version of the app
	LegacyFavoritesKey = "@favorite_meals"

	persistTimeout = 5 * time.Second
)

// FavoritesConfig holds configuration for the favorites store
type FavoritesConfig struct {
	// DeleteLegacyAfterMigration removes LegacyFavoritesKey once the migrated
	// map has been written. Off by default so a rollback can still read it.
	DeleteLegacyAfterMigration bool
	Logger                     zerolog.Logger
	Metrics                    *metrics.Metrics
}

// ToggleResult reports the state of a recipe after a toggle
type ToggleResult struct {
	ID       domain.RecipeID `json:"id"`
	Favorite bool            `json:"favorite"`
}

// FavoritesStore owns the user's favorites. Reads are served from memory.
// Every mutation re-serializes the whole map and hands the snapshot to a
// single background writer. Only the newest snapshot is kept, so a slow store
// skips intermediate states and the last mutation wins. Mutations never wait
// for the write; durability is eventual and failures are only logged.
type FavoritesStore struct {
	store        domain.KeyValueStore
	deleteLegacy bool
	logger       zerolog.Logger
	metrics      *metrics.Metrics

	mu      sync.RWMutex
	records map[domain.RecipeID]domain.FavoriteRecord
	order   []domain.RecipeID
	closed  bool

	hydrateOnce sync.Once
	hydrated    atomic.Bool

	// writer hand-off, guarded by persistMu. Generations count snapshots;
	// attempted is the newest one the writer has tried to save.
	persistMu  sync.Mutex
	pending    []byte
	queued     uint64
	attempted  uint64
	lastErr    error
	progress   chan struct{} // closed and replaced after every attempt
	wake       chan struct{}
	stop       chan struct{}
	writerDone chan struct{}
}

// NewFavoritesStore creates an empty store and starts its writer.
// Call Hydrate to load persisted favorites and Close to stop the writer.
func NewFavoritesStore(store domain.KeyValueStore, config FavoritesConfig) *FavoritesStore {
	s := &FavoritesStore{
		store:        store,
		deleteLegacy: config.DeleteLegacyAfterMigration,
		logger:       logging.Component(config.Logger, "favorites"),
		metrics:      config.Metrics,
		records:      make(map[domain.RecipeID]domain.FavoriteRecord),
		progress:     make(chan struct{}),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}

	go s.runWriter()

	return s
}

// Hydrate loads the persisted favorites. It runs at most once; later calls
// return immediately. The current key is preferred; when it is absent the
// legacy key is migrated and the result written under the current key.
// Failures are logged and leave the in-memory map untouched.
//
// Mutations made before Hydrate finishes are replaced by the loaded state.
func (s *FavoritesStore) Hydrate(ctx context.Context) {
	s.hydrateOnce.Do(func() {
		defer s.hydrated.Store(true)
		s.hydrate(ctx)
	})
}

// Hydrated reports whether Hydrate has completed
func (s *FavoritesStore) Hydrated() bool {
	return s.hydrated.Load()
}

func (s *FavoritesStore) hydrate(ctx context.Context) {
	raw, err := s.store.Get(ctx, FavoritesKey)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		s.logger.Warn().Err(err).Msg("failed to load favorites")
		return
	}
	if err == nil && raw != "" {
		order, records, skipped, err := decodeFavorites(raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to parse favorites")
			return
		}
		s.mu.Lock()
		s.adoptLocked(order, records)
		s.mu.Unlock()
		s.logger.Info().Int("count", len(order)).Int("skipped", skipped).Msg("favorites loaded")
		return
	}

	legacy, err := s.store.Get(ctx, LegacyFavoritesKey)
	if errors.Is(err, domain.ErrKeyNotFound) || (err == nil && legacy == "") {
		s.logger.Debug().Msg("no stored favorites")
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load legacy favorites")
		return
	}

	order, records, dropped, err := migrateLegacyFavorites(legacy)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to parse legacy favorites")
		return
	}

	s.mu.Lock()
	s.adoptLocked(order, records)
	generation := s.enqueueLocked()
	s.mu.Unlock()

	s.logger.Info().Int("count", len(order)).Int("dropped", dropped).Msg("migrated legacy favorites")

	if !s.deleteLegacy || generation == 0 {
		return
	}
	writeErr, ok := s.waitFor(ctx, generation)
	if !ok {
		return
	}
	if writeErr != nil {
		s.logger.Warn().Err(writeErr).Msg("keeping legacy favorites, migrated copy was not saved")
		return
	}
	if err := s.store.Delete(ctx, LegacyFavoritesKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete legacy favorites")
	}
}

// IsFavorite reports whether id is currently favorited
func (s *FavoritesStore) IsFavorite(id domain.RecipeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[id]
	return ok
}

// Toggle normalizes a recipe object (catalog or legacy shape) and adds it to
// the favorites, or removes it when its id is already present. ok is false,
// and nothing changes, when the object has no usable id.
func (s *FavoritesStore) Toggle(item []byte) (result ToggleResult, ok bool) {
	record, err := spoonacular.ToFavoriteRecord(item)
	if err != nil {
		s.logger.Debug().Err(err).Msg("ignoring toggle")
		return ToggleResult{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result.ID = record.ID
	if _, exists := s.records[record.ID]; exists {
		s.removeLocked(record.ID)
	} else {
		s.putLocked(record)
		result.Favorite = true
	}

	s.metrics.SetFavoritesCount(len(s.order))
	s.enqueueLocked()
	return result, true
}

// Clear removes every favorite
func (s *FavoritesStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adoptLocked(nil, make(map[domain.RecipeID]domain.FavoriteRecord))
	s.enqueueLocked()
}

// Favorites returns a snapshot of the favorites in insertion order
func (s *FavoritesStore) Favorites() []domain.FavoriteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.FavoriteRecord, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.records[id])
	}
	return list
}

// Flush waits until the state as of this call has been handed to the store.
// Write failures are not reported; they are logged by the writer.
func (s *FavoritesStore) Flush(ctx context.Context) error {
	s.persistMu.Lock()
	target := s.queued
	s.persistMu.Unlock()

	if _, ok := s.waitFor(ctx, target); !ok {
		return ctx.Err()
	}
	return nil
}

// Close saves the latest pending state and stops the writer. Mutations after
// Close still apply in memory but are not persisted.
func (s *FavoritesStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()

	select {
	case <-s.writerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *FavoritesStore) adoptLocked(order []domain.RecipeID, records map[domain.RecipeID]domain.FavoriteRecord) {
	s.order = order
	s.records = records
	s.metrics.SetFavoritesCount(len(order))
}

func (s *FavoritesStore) putLocked(record domain.FavoriteRecord) {
	s.order, s.records = putRecord(s.order, s.records, record.ID, record)
}

func (s *FavoritesStore) removeLocked(id domain.RecipeID) {
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// enqueueLocked snapshots the map, replaces any unsaved snapshot with it and
// wakes the writer without blocking. It returns the snapshot's generation,
// or 0 when nothing was queued.
func (s *FavoritesStore) enqueueLocked() uint64 {
	if s.closed {
		s.logger.Warn().Msg("favorites store closed, change kept in memory only")
		return 0
	}

	data, err := encodeFavorites(s.order, s.records)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode favorites")
		return 0
	}

	s.persistMu.Lock()
	s.queued++
	generation := s.queued
	s.pending = data
	s.persistMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return generation
}

// waitFor blocks until the writer has attempted generation (or a newer one)
// and returns that attempt's error. ok is false when ctx ended first.
func (s *FavoritesStore) waitFor(ctx context.Context, generation uint64) (writeErr error, ok bool) {
	for {
		s.persistMu.Lock()
		if s.attempted >= generation {
			writeErr = s.lastErr
			s.persistMu.Unlock()
			return writeErr, true
		}
		progress := s.progress
		s.persistMu.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (s *FavoritesStore) runWriter() {
	defer close(s.writerDone)

	for {
		select {
		case <-s.wake:
			s.writePending()
		case <-s.stop:
			s.writePending()
			return
		}
	}
}

// writePending saves the newest snapshot, if any. No lock is held during I/O.
func (s *FavoritesStore) writePending() {
	s.persistMu.Lock()
	data, generation := s.pending, s.queued
	s.pending = nil
	s.persistMu.Unlock()

	if data == nil {
		return
	}

	err := s.persist(data)

	s.persistMu.Lock()
	s.attempted = generation
	s.lastErr = err
	close(s.progress)
	s.progress = make(chan struct{})
	s.persistMu.Unlock()
}

func (s *FavoritesStore) persist(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := s.store.Set(ctx, FavoritesKey, string(data))
	s.metrics.ObserveFavoritesPersist(err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to save favorites")
	}
	return err
}

// putRecord inserts or replaces a record; replacing keeps the original position
func putRecord(
	order []domain.RecipeID,
	records map[domain.RecipeID]domain.FavoriteRecord,
	key domain.RecipeID,
	record domain.FavoriteRecord,
) ([]domain.RecipeID, map[domain.RecipeID]domain.FavoriteRecord) {
	if _, exists := records[key]; !exists {
		order = append(order, key)
	}
	records[key] = record
	return order, records
}

// encodeFavorites writes the map as a JSON object keyed by id, in insertion order
func encodeFavorites(order []domain.RecipeID, records map[domain.RecipeID]domain.FavoriteRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id.String())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(records[id])
		if err != nil {
			return nil, fmt.Errorf("failed to encode favorite %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeFavorites parses the current-format map, keeping document order.
// Entries that do not decode as a FavoriteRecord are skipped and counted.
func decodeFavorites(raw string) ([]domain.RecipeID, map[domain.RecipeID]domain.FavoriteRecord, int, error) {
	if !gjson.Valid(raw) {
		return nil, nil, 0, errors.New("favorites are not valid JSON")
	}

	order := []domain.RecipeID{}
	records := make(map[domain.RecipeID]domain.FavoriteRecord)

	parsed := gjson.Parse(raw)
	if parsed.Type == gjson.Null {
		return order, records, 0, nil
	}
	if !parsed.IsObject() {
		return nil, nil, 0, errors.New("favorites are not a JSON object")
	}

	skipped := 0
	parsed.ForEach(func(key, value gjson.Result) bool {
		var record domain.FavoriteRecord
		if err := json.Unmarshal([]byte(value.Raw), &record); err != nil || !value.IsObject() {
			skipped++
			return true
		}
		id := domain.RecipeID(key.String())
		if record.ID == "" {
			record.ID = id
		}
		if record.DishTypes == nil {
			record.DishTypes = []string{}
		}
		if record.Diets == nil {
			record.Diets = []string{}
		}
		order, records = putRecord(order, records, id, record)
		return true
	})

	return order, records, skipped, nil
}

// migrateLegacyFavorites normalizes every value of the legacy map (or array)
// into a FavoriteRecord. Values without a usable id are dropped and counted.
// A JSON null or scalar migrates to an empty map.
func migrateLegacyFavorites(raw string) ([]domain.RecipeID, map[domain.RecipeID]domain.FavoriteRecord, int, error) {
	if !gjson.Valid(raw) {
		return nil, nil, 0, errors.New("legacy favorites are not valid JSON")
	}

	order := []domain.RecipeID{}
	records := make(map[domain.RecipeID]domain.FavoriteRecord)

	parsed := gjson.Parse(raw)
	if !parsed.IsObject() && !parsed.IsArray() {
		return order, records, 0, nil
	}

	dropped := 0
	parsed.ForEach(func(_, value gjson.Result) bool {
		record, err := spoonacular.ToFavoriteRecord([]byte(value.Raw))
		if err != nil {
			dropped++
			return true
		}
		order, records = putRecord(order, records, record.ID, record)
		return true
	})

	return order, records, dropped, nil
}
