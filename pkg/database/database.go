package database

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"booklend/pkg/config"
	"booklend/pkg/ledger"
	"booklend/pkg/models"
)

func InitIdentityDB(cfg config.Database) *gorm.DB {
	log.Printf("Connecting to identity database: host=%s, port=%s", cfg.Host, cfg.Port)
	return initDB(cfg.DSN(), &models.User{})
}

func InitCatalogDB(cfg config.Database) *gorm.DB {
	log.Printf("Connecting to catalog database: host=%s, port=%s", cfg.Host, cfg.Port)
	return initDB(cfg.DSN(), &models.Book{})
}

func InitBookingDB(cfg config.Database) *gorm.DB {
	log.Printf("Connecting to booking database: host=%s, port=%s", cfg.Host, cfg.Port)
	db := open(cfg.DSN())
	if err := ledger.Migrate(db); err != nil {
		log.Fatal("Database migration failed:", err)
	}
	log.Println("Database connection established successfully")
	return db
}

func initDB(dsn string, models ...interface{}) *gorm.DB {
	db := open(dsn)

	err := db.AutoMigrate(models...)
	if err != nil {
		log.Fatal("Database migration failed:", err)
	}

	log.Println("Database connection established successfully")
	return db
}

func open(dsn string) *gorm.DB {
	var db *gorm.DB
	var err error
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(5 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	return db
}
