package database

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

// Config carries the connection settings for the circulation database.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// LoadConfig reads DB_* environment variables, falling back to the defaults
// used by the docker-compose setup.
func LoadConfig() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("db_host", "postgres")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "program")
	v.SetDefault("db_password", "test")
	v.SetDefault("db_name", "circulation")

	return Config{
		Host:     v.GetString("db_host"),
		Port:     v.GetString("db_port"),
		User:     v.GetString("db_user"),
		Password: v.GetString("db_password"),
		Name:     v.GetString("db_name"),
	}
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// Connect opens the database, retrying while it comes up, tunes the pool and
// migrates the schema.
func Connect(cfg Config) (*gorm.DB, error) {
	log.Printf("Connecting to database: %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	var (
		db  *gorm.DB
		err error
	)
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(5 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database connection established successfully")
	return db, nil
}

// Migrate creates or updates the schema for every circulation entity.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Borrower{},
		&models.LibraryCard{},
		&models.BookCopy{},
		&models.Loan{},
		&models.Reservation{},
		&models.Review{},
	)
	if err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}
