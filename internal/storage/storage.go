package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	config "github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
	storage_logger "github.com/wirefox/gramhook-server/internal/storage/storage_logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Route cache sizing. Costs are 1 per entry, so MaxCost is the entry count.
const (
	cacheNumCounters = 10_000
	cacheMaxCost     = 1_000
	cacheBufferItems = 64
	cacheTTL         = 5 * time.Minute
)

type Storage struct {
	db     *gorm.DB
	routes *ristretto.Cache[string, *model.Route]
}

func New(config *config.Config, logger *slog.Logger) (*Storage, error) {
	dialector, err := createDialector(&config.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{},
			Logger:         storage_logger.NewGormSlogLogger(logger),
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
	if err != nil {
		return nil, err
	}

	// Migrations
	const timeoutSeconds = 15 * 60
	ctx, cancel := context.WithTimeout(context.Background(), timeoutSeconds*time.Second)
	defer cancel() // releases resources if slowOperation completes before timeout elapses
	if err := db.WithContext(ctx).AutoMigrate(
		&model.Route{},
		&model.KeyValue{},
	); err != nil {
		return nil, err
	}

	// Hot-path route lookups go through this cache; administrative writes
	// invalidate the touched origin key.
	routes, err := ristretto.NewCache(&ristretto.Config[string, *model.Route]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Storage{db: db, routes: routes}, nil
}

// Close - close the database connection
func (s *Storage) Close() error {
	s.routes.Close()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Status pings the underlying database, for the health endpoint.
func (s *Storage) Status() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// RouteByID - get the route by ID
func (s *Storage) RouteByID(id uint64) (*model.Route, error) {
	var route model.Route
	if err := s.db.First(&route, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrorNoRoute
		}

		return nil, err
	}

	return &route, nil
}

// RouteFor - get the route for an origin. Topic matching is strict: a
// topic-less lookup (model.NoTopic) never matches a topic-bound route and
// vice versa. Returns errs.ErrorNoRoute when no entry exists.
func (s *Storage) RouteFor(chatID, topicID int64) (*model.Route, error) {
	key := model.OriginKey(chatID, topicID)
	if route, ok := s.routes.Get(key); ok {
		return route, nil
	}

	var route model.Route
	if e := s.db.Where("chat_id = ? AND topic_id = ?", chatID, topicID).First(&route).Error; e != nil {
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return nil, errs.ErrorNoRoute
		}

		return nil, e
	}

	s.routes.SetWithTTL(key, &route, 1, cacheTTL)

	return &route, nil
}

// Routes - get all routes
func (s *Storage) Routes() ([]model.Route, error) {
	var routes []model.Route
	if err := s.db.Order("chat_id, topic_id").Find(&routes).Error; err != nil {
		return nil, err
	}

	return routes, nil
}

// UpsertRoute - insert or update the route keyed by its origin pair.
// Writes that leave the stored content untouched are skipped so the
// route cache is not invalidated for nothing.
func (s *Storage) UpsertRoute(route *model.Route) error {
	if existing, err := s.RouteFor(route.ChatID, route.TopicID); err == nil {
		existingHash, hashErr := existing.Hash()
		if hashErr != nil {
			return hashErr
		}

		incomingHash, hashErr := route.Hash()
		if hashErr != nil {
			return hashErr
		}

		if existingHash == incomingHash {
			route.ID = existing.ID

			return nil
		}
	} else if !errors.Is(err, errs.ErrorNoRoute) {
		return err
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"webhook_url", "note", "updated_at"}),
	}).Create(route).Error; err != nil {
		return err
	}

	s.invalidate(route.OriginKey())

	return nil
}

// DeleteRoute - delete the route by ID
func (s *Storage) DeleteRoute(id uint64) error {
	route, err := s.RouteByID(id)
	if err != nil {
		return err
	}

	if err := s.db.Delete(route).Error; err != nil {
		return err
	}

	s.invalidate(route.OriginKey())

	return nil
}

// invalidate drops one origin key from the route cache. Wait drains the
// set buffers first so an in-flight read cannot resurrect the stale entry.
func (s *Storage) invalidate(key string) {
	s.routes.Wait()
	s.routes.Del(key)
}

// UpdateOffset - get the persisted source-session update offset, zero if unset
func (s *Storage) UpdateOffset() (int, error) {
	var kv model.KeyValue
	if e := s.db.First(&kv, "key = ?", model.KeyUpdateOffset).Error; e != nil {
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return 0, nil
		}

		return 0, e
	}

	var offset int
	if e := kv.GetValue(&offset); e != nil {
		return 0, e
	}

	return offset, nil
}

// SetUpdateOffset - persist the source-session update offset for resume
func (s *Storage) SetUpdateOffset(offset int) error {
	kv := model.KeyValue{Key: model.KeyUpdateOffset}
	if err := kv.SetValue(offset); err != nil {
		return err
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
}
