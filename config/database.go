package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ecoguide/ecoguide/models"
)

var db *gorm.DB

// InitDatabase establishes a connection to PostgreSQL using configuration values and performs automatic migrations.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	var dsn string
	if cfg.DatabaseURI != "" {
		dsn = cfg.DatabaseURI
	} else {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Local",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
		)
	}

	// Configure GORM logger: derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gLogger})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Ping at boot so network/auth problems surface before the first query
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	// Only migrate when the table does not exist to avoid intrusive changes on existing schema
	for _, model := range modelDefs {
		if !db.Migrator().HasTable(model) {
			if err := db.AutoMigrate(model); err != nil {
				log.Printf("auto migration failed for %T: %v", model, err)
			}
		}
	}

	seedCatalog(db)

	return db
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "warn", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}

// seedCatalog inserts a starter waste catalog when the residuos table is empty,
// so a fresh deployment has something to classify against.
func seedCatalog(db *gorm.DB) {
	var cnt int64
	if err := db.Model(&models.WasteItem{}).Count(&cnt).Error; err != nil || cnt > 0 {
		return
	}
	items := []models.WasteItem{
		{Nombre: "Botella de plástico", Categoria: "plastico", Dificultad: 1, CO2Impacto: 0.5, Consejo: "Enjuágala y aplástala antes de depositarla en el contenedor amarillo."},
		{Nombre: "Cáscara de plátano", Categoria: "organico", Dificultad: 1, CO2Impacto: 0.2, Consejo: "Va al contenedor marrón; sirve para compost."},
		{Nombre: "Periódico", Categoria: "papel", Dificultad: 1, CO2Impacto: 0.3, Consejo: "Contenedor azul, sin bolsas de plástico."},
		{Nombre: "Frasco de vidrio", Categoria: "vidrio", Dificultad: 2, CO2Impacto: 0.6, Consejo: "Quita la tapa metálica antes de depositarlo en el contenedor verde."},
		{Nombre: "Pila alcalina", Categoria: "peligroso", Dificultad: 3, CO2Impacto: 1.2, Consejo: "Nunca a la basura común: llévala a un punto limpio."},
		{Nombre: "Brik de leche", Categoria: "plastico", Dificultad: 2, CO2Impacto: 0.4, Consejo: "Los envases tipo brik van al contenedor amarillo aunque parezcan cartón."},
		{Nombre: "Aceite de cocina usado", Categoria: "peligroso", Dificultad: 4, CO2Impacto: 1.5, Consejo: "Guárdalo en una botella cerrada y llévalo a un punto limpio."},
		{Nombre: "Vaso de café desechable", Categoria: "papel", Dificultad: 3, CO2Impacto: 0.35, Consejo: "El recubrimiento plástico suele impedir reciclarlo como papel."},
	}
	if err := db.Create(&items).Error; err != nil {
		log.Printf("catalog seed failed: %v", err)
	}
}
