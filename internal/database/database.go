package database

import (
	"fmt"
	"time"

	"github.com/zfogg/blog/backend/internal/config"
	applog "github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the process-wide connection, set by Initialize.
var DB *gorm.DB

// Initialize opens the database selected by cfg and stores it in DB.
func Initialize(cfg *config.Config) error {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if !cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = OpenSQLite(cfg.SQLitePath)
	default:
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger:  gormLogger,
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver != "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	DB = db
	applog.Log.Info("✅ Database connected", zap.String("driver", cfg.DBDriver))
	return nil
}

// OpenSQLite opens a SQLite database (":memory:" for tests). SQLite allows a
// single writer, so the pool is pinned to one connection; an in-memory
// database would otherwise be per-connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserProfile{},
		&models.Category{},
		&models.CategoryAnalytics{},
		&models.CategoryView{},
		&models.Post{},
		&models.PostAnalytics{},
		&models.Heading{},
		&models.Comment{},
		&models.PostLike{},
		&models.PostShare{},
		&models.PostView{},
		&models.PostInteraction{},
	}
}

// Migrate runs auto-migration plus the indexes gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	applog.Log.Info("✅ Database migrations completed")
	return nil
}

// createIndexes uses only SQL that both Postgres and SQLite accept.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE INDEX IF NOT EXISTS idx_posts_status_created ON posts (status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_posts_category_status ON posts (category_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments (post_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_comments_parent_active ON comments (parent_id, is_active, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_headings_post_order ON headings (post_id, sort_order)",
		// comment_id is nullable, so uniqueness is enforced on its text form.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_post_interactions_unique ON post_interactions " +
			"(user_id, post_id, interaction_type, COALESCE(CAST(comment_id AS TEXT), ''))",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
