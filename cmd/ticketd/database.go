package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/store/gormstore"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	sqliteMemory      = ":memory:"
	defaultSQLiteFile = "ticketengine.db"
)

var postgresSchemes = []string{"postgres://", "postgresql://"}

// databaseTarget is a parsed --database-url: the driver plus what its dialector opens.
type databaseTarget struct {
	driver string
	source string
}

func parseDatabaseTarget(dsn string) (databaseTarget, error) {
	dsn = strings.TrimSpace(dsn)
	for _, scheme := range postgresSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return databaseTarget{driver: driverPostgres, source: dsn}, nil
		}
	}
	if !strings.HasPrefix(dsn, "sqlite://") {
		return databaseTarget{driver: driverSQLite, source: sqliteSource(dsn)}, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return databaseTarget{}, fmt.Errorf("parse sqlite url: %w", err)
	}
	// sqlite://tickets.db puts the file name in the host slot.
	file := parsed.Host + parsed.Path
	if file == "" || file == "/" {
		file = defaultSQLiteFile
	}
	return databaseTarget{driver: driverSQLite, source: sqliteSource(file)}, nil
}

func sqliteSource(file string) string {
	if file == sqliteMemory || filepath.IsAbs(file) {
		return file
	}
	return filepath.Clean(file)
}

func (target databaseTarget) dialector() (gorm.Dialector, error) {
	switch target.driver {
	case driverPostgres:
		return postgres.Open(target.source), nil
	case driverSQLite:
		if target.source != sqliteMemory {
			if err := os.MkdirAll(filepath.Dir(target.source), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(target.source), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", target.driver)
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	target, err := parseDatabaseTarget(dsn)
	if err != nil {
		return nil, nil, "", err
	}
	dialector, err := target.dialector()
	if err != nil {
		return nil, nil, "", err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if target.driver == driverSQLite {
		// sqlite has no row locks; one connection serializes every unit of work.
		sqlDB.SetMaxOpenConns(1)
	}
	return db.WithContext(ctx), sqlDB.Close, target.driver, nil
}

func prepareSchema(db *gorm.DB) error {
	return gormstore.Migrate(db)
}
