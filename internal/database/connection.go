package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver          string
	SQLitePath      string
	Host            string
	Port            string
	User            string
	DBName          string
	Password        string
	MaxConn         int
	MaxIdleConn     int
	ConnMaxLifetime int
	LogLevel        string
	SSLMode         string
}

func NewConnection(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(gormLogLevel(dbConfig.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch dbConfig.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(dbConfig.SQLitePath)
	default:
		portInt, err := strconv.Atoi(dbConfig.Port)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %w", err)
		}
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			dbConfig.Host, portInt, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
		)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if dbConfig.Driver == DriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(orDefault(dbConfig.MaxIdleConn, 10))
	sqlDB.SetMaxOpenConns(orDefault(dbConfig.MaxConn, 100))
	sqlDB.SetConnMaxLifetime(time.Duration(orDefault(dbConfig.ConnMaxLifetime, 60)) * time.Minute)

	return db, nil
}

func validateConfig(config *DatabaseConfig) error {
	switch {
	case config == nil:
		return fmt.Errorf("database config is nil")
	case config.Driver != DriverPostgres && config.Driver != DriverSQLite:
		return fmt.Errorf("unsupported database driver %q", config.Driver)
	case config.Driver == DriverSQLite && config.SQLitePath == "":
		return fmt.Errorf("sqlite path config is empty")
	case config.Driver == DriverSQLite:
		return nil
	case config.Host == "":
		return fmt.Errorf("database host config is empty")
	case config.Port == "":
		return fmt.Errorf("database port config is empty")
	case config.User == "":
		return fmt.Errorf("database user config is empty")
	case config.Password == "":
		return fmt.Errorf("database password config is empty")
	case config.DBName == "":
		return fmt.Errorf("database name config is empty")
	case config.SSLMode == "":
		return fmt.Errorf("database SSLMode config is empty")
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return logger.Silent
	case "ERROR":
		return logger.Error
	case "INFO":
		return logger.Info
	default:
		return logger.Warn
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
