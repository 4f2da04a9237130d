package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"project-sync/handlers"
	"project-sync/models"
	"project-sync/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment as is")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "project_sync.db"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Integration{},
		&models.ExternalRepository{},
		&models.JiraProjectLink{},
		&models.ExternalActor{},
		&models.Commit{},
		&models.PullRequest{},
		&models.JiraIssue{},
		&models.WorkLink{},
	)
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	syncService := services.NewSyncService(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go syncService.RunScheduler(ctx, services.SyncInterval())

	r := gin.Default()
	handler := handlers.NewIntegrationHandler(db, syncService)
	r.POST("/projects/:projectID/integrations", handler.LinkIntegration)
	r.POST("/integrations/:id/sync", handler.SyncNow)
	r.GET("/integrations/:id", handler.GetIntegration)
	r.GET("/issues/:key/links", handler.IssueLinks)
	r.GET("/repositories/:id/links", handler.RepositoryLinks)

	if err := r.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
