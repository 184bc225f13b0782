package database

import (
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlitePrefix selects the embedded driver, e.g. "sqlite:assistant.db" for
// the local CLI. Anything else is handed to postgres.
const sqlitePrefix = "sqlite:"

func getLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // Don't include params in the SQL log
			Colorful:                  true,
		},
	)
}

func configureConnectionPool(db *gorm.DB, maxOpen int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(min(10, maxOpen))
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

func dialector(dsn string) (gorm.Dialector, int) {
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		// sqlite serializes writers anyway
		return sqlite.Open(path), 1
	}
	return postgres.Open(dsn), 100
}

// NewGormDBFromDSN opens the database and migrates the assistant tables.
// models is usually model.AutoMigrateModels().
func NewGormDBFromDSN(dsn string, verbose bool, models ...interface{}) (*gorm.DB, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}

	d, maxOpen := dialector(dsn)
	db, err := gorm.Open(d, &gorm.Config{
		Logger: getLogger(level),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, maxOpen); err != nil {
		return nil, err
	}

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, err
		}
	}

	return db, nil
}
