package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"combat-service/handlers"
	"combat-service/middleware"
	"combat-service/models"
	"combat-service/repository"
	"combat-service/services"
	"combat-service/utils"
	"combat-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "combat-service",
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-User-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Duel{},
		&models.DuelAction{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- CONFIGURE Character Service details ---
	characterServiceURL := os.Getenv("CHARACTER_SERVICE_URL")
	if characterServiceURL == "" {
		log.Fatal("CHARACTER_SERVICE_URL environment variable not set")
	}
	characterServiceToken := os.Getenv("CHARACTER_SERVICE_TOKEN")
	if characterServiceToken == "" {
		log.Fatal("CHARACTER_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	duelRepo := repository.NewDuelRepository(db)
	characterGateway := services.NewCharacterGateway(characterServiceURL, characterServiceToken)
	notificationService := services.NewNotificationService(characterServiceURL, characterServiceToken)
	combatService := services.NewCombatService(duelRepo, characterGateway, notificationService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := workers.NewDuelSweeper(combatService)
	sweeper.Start(ctx)

	syncWorker := workers.NewCharacterSyncWorker(duelRepo, characterGateway)
	syncWorker.Start(ctx)

	// The R2 archive is optional — only runs when the bucket env vars are set
	if utils.R2Configured() {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiveWorker := workers.NewDuelArchiveWorker(duelRepo)
		archiveWorker.Start(ctx)
		log.Println("✅ Duel Archive Worker running (finished duels → R2)")
	} else {
		log.Println("⚠️  R2 not configured, duel archiving disabled")
	}

	combatService.StartSweepScheduler()

	// ✅ Setup routes — Gateway auth enforced globally, user context on /duels
	handlers.SetupCombatRoutes(app, combatService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Duel Sweeper running (every 30s)")
	log.Println("✅ Character Sync Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
