package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/filconv/filconv/handlers"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/database"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/sessions"
	"github.com/filconv/filconv/internal/users"
	"github.com/filconv/filconv/pkg/logger"
)

// deps are the optional backing services. Each one that is configured but
// unreachable is logged and replaced by its in-process fallback.
type deps struct {
	redis  *redis.Client
	mongo  *mongo.Client
	pg     *sql.DB
	checks map[string]handlers.Check
}

func connect(ctx context.Context, cfg *config.Config) *deps {
	d := &deps{checks: map[string]handlers.Check{}}

	if addr := cfg.RedisAddr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = rc.Close()
		} else {
			logger.Infof("Connected to Redis: %s", addr)
			d.redis = rc
		}
	}

	if cfg.MongoDB.URI != "" {
		var errConn error
		d.mongo, errConn = database.DialMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB: %v", errConn)
			d.mongo = nil
		} else {
			mc := d.mongo
			d.checks["mongodb"] = func(ctx context.Context) error { return mc.Ping(ctx, nil) }
		}
	}

	if cfg.Postgres.DSN != "" {
		db, err := database.OpenPostgres(ctx, cfg.Postgres.DSN, 10*time.Second)
		if err != nil {
			logger.Warnf("failed to connect to Postgres: %v", err)
		} else if err := database.RunMigrations(ctx, db); err != nil {
			logger.Errorf("postgres migrations: %v", err)
			_ = db.Close()
		} else {
			d.pg = db
			d.checks["postgres"] = db.PingContext
		}
	}
	return d
}

func (d *deps) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.mongo != nil {
		_ = d.mongo.Disconnect(ctx)
	}
	if d.pg != nil {
		_ = d.pg.Close()
	}
}

// userRepository prefers the SQL users table, then MongoDB, then memory.
func (d *deps) userRepository(ctx context.Context, cfg *config.Config) users.UserRepository {
	switch {
	case d.pg != nil:
		logger.Infof("users: postgres")
		return users.NewPostgresRepository(d.pg)
	case d.mongo != nil:
		logger.Infof("users: mongodb")
		return users.NewMongoUserRepository(ctx, d.mongo.Database(cfg.MongoDB.Database).Collection("users"))
	}
	logger.Warnf("users: in-memory store, accounts are lost on restart")
	return users.NewMemoryRepository()
}

// sessionRepository prefers Redis, then MongoDB, then memory.
func (d *deps) sessionRepository(ctx context.Context, cfg *config.Config) sessions.Repository {
	switch {
	case d.redis != nil:
		logger.Infof("sessions: redis")
		repo := sessions.NewRedisRepository(d.redis, "session:")
		d.checks["redis"] = repo.Ping
		return repo
	case d.mongo != nil:
		logger.Infof("sessions: mongodb")
		return sessions.NewMongoRepository(ctx, d.mongo.Database(cfg.MongoDB.Database).Collection("sessions"))
	}
	logger.Infof("sessions: in-memory")
	return sessions.NewMemoryRepository()
}

func (d *deps) blacklist() sessions.Blacklist {
	if d.redis != nil {
		return sessions.NewRedisBlacklist(d.redis)
	}
	return sessions.NewMemoryBlacklist()
}

func (d *deps) historyRecorder(ctx context.Context, cfg *config.Config) *history.Recorder {
	if d.mongo != nil {
		return history.NewRecorder(history.NewMongoRepository(ctx, d.mongo.Database(cfg.MongoDB.Database).Collection("operations")))
	}
	return history.NewRecorder(history.NewMemoryRepository(1000))
}
