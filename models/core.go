package models

import (
	"log"
	"os"
	"path/filepath"

	"github.com/GrainArc/LandCollect/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

func InitDB() {
	var err error
	switch config.Dbtype {
	case "postgres":
		DB, err = gorm.Open(postgres.Open(config.DSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
	default:
		// 外业离线部署使用本地sqlite
		StoragePath := config.Download
		DBFileName := "boundary.db"
		if err = os.MkdirAll(StoragePath, os.ModePerm); err != nil {
			log.Fatalf("创建存储目录失败: %v", err)
		}
		dbPath := filepath.Join(StoragePath, DBFileName)
		log.Printf("数据库路径: %s", dbPath)
		DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			log.Fatalf("连接数据库失败: %v", err)
		}
	}

	// 设置命名策略
	DB.NamingStrategy = schema.NamingStrategy{
		SingularTable: true,
	}

	// 批量迁移所有表
	if err := migrateAllTables(DB); err != nil {
		log.Printf("Failed to migrate tables: %v", err)
	}

	log.Println("数据库初始化成功")
}

// migrateAllTables 批量迁移所有表
func migrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&Boundary{},
		&CaptureDraft{},
		&TileCache{},
	}

	return db.AutoMigrate(models...)
}

func GetDB() *gorm.DB {
	return DB
}
