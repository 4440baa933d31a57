package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"solace/internal/config"
	"solace/internal/database"
	"solace/internal/events"
	"solace/internal/filestore"
	"solace/internal/handlers"
	"solace/internal/imagesearch"
	"solace/internal/jobs"
	"solace/internal/llm"
	"solace/internal/logging"
	"solace/internal/migrate"
	"solace/internal/queue"
	"solace/internal/services"
	"solace/internal/tts"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("📝 No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()
	metrics := services.InitMetrics()

	bus := events.NewBus()

	// Storage layer. Open upgrades the schema before anything touches the
	// store.
	db, err := database.Open(cfg.DBPath, bus)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 5*time.Minute)

	files := filestore.NewService(db)

	// Repositories
	contacts := services.NewContactService(db, files)
	pool := services.NewAPIConfigService(db, bus)
	memory := services.NewMemoryService(db)
	emojis := services.NewEmojiService(db, files)
	moments := services.NewMomentService(db, files)
	profile := services.NewProfileService(db, files)
	themes := services.NewThemeService(db)
	songs := services.NewSongService(db, files)
	transfer := services.NewTransferService(db)

	// Legacy inline payloads are drained into the file store before the
	// HTTP surface comes up.
	migrator := migrate.New(db, files, bus)
	if summary, err := migrator.MigrateAll(initCtx, nil); err != nil {
		log.Fatalf("❌ Legacy data migration failed: %v", err)
	} else if summary.Partial() {
		log.Printf("⚠️  Migration converted %d records with %d failures", summary.Migrated, len(summary.Failures))
	}
	cancelInit()

	// Upstream clients and the request queue
	llmClient := llm.NewClient(pool)
	ttsClient := tts.NewClient(files, tts.Options{
		Endpoint: cfg.TTSEndpoint,
		GroupID:  cfg.TTSGroupID,
		APIKey:   cfg.TTSAPIKey,
		Model:    cfg.TTSModel,
	})
	imageClient := imagesearch.NewClient(cfg.ImageSearchKey)
	requestQueue := queue.New(bus, queue.Options{
		MaxRetries:  cfg.QueueMaxRetries,
		MinInterval: cfg.QueueMinInterval,
	})

	// Background maintenance
	janitor, err := jobs.NewJanitor(files, contacts, emojis, moments, profile, songs)
	if err != nil {
		log.Fatalf("❌ Failed to create janitor: %v", err)
	}
	if err := janitor.Start(); err != nil {
		log.Fatalf("❌ Failed to start janitor: %v", err)
	}

	// Handlers
	contactHandler := handlers.NewContactHandler(contacts)
	configHandler := handlers.NewAPIConfigHandler(pool, llmClient)
	memoryHandler := handlers.NewMemoryHandler(memory)
	emojiHandler := handlers.NewEmojiHandler(emojis)
	momentHandler := handlers.NewMomentHandler(moments)
	profileHandler := handlers.NewProfileHandler(profile, themes, songs)
	fileHandler := handlers.NewFileHandler(files)
	chatHandler := handlers.NewChatHandler(contacts, memory, pool, llmClient, requestQueue)
	queueHandler := handlers.NewQueueHandler(requestQueue)
	mediaHandler := handlers.NewMediaHandler(ttsClient, imageClient, files)
	transferHandler := handlers.NewTransferHandler(transfer, migrator)
	eventsHandler := handlers.NewEventsHandler(bus, metrics)
	healthHandler := handlers.NewHealthHandler(db, requestQueue)

	app := fiber.New(fiber.Config{
		AppName:      "Solace v1.0",
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
		BodyLimit:    50 * 1024 * 1024, // store imports and audio uploads are large
	})

	app.Use(recover.New())

	prometheus := fiberprometheus.New("solace")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: allowedOrigins}))

	// Health
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")

	// Contacts and chat history
	api.Get("/contacts", contactHandler.List)
	api.Post("/contacts", contactHandler.Upsert)
	api.Get("/contacts/:id", contactHandler.Get)
	api.Delete("/contacts/:id", contactHandler.Delete)
	api.Get("/contacts/:id/messages", contactHandler.Messages)
	api.Post("/contacts/:id/messages", contactHandler.AppendMessage)
	api.Patch("/contacts/:id/messages/:messageId", contactHandler.EditMessage)
	api.Put("/contacts/:id/avatar", contactHandler.SetAvatar)
	api.Post("/contacts/:id/chat", chatHandler.Generate)

	// Provider configs and the key pool
	api.Get("/configs", configHandler.List)
	api.Post("/configs", configHandler.Upsert)
	api.Get("/configs/:id", configHandler.Get)
	api.Delete("/configs/:id", configHandler.Delete)
	api.Post("/configs/:id/activate", configHandler.SetActive)
	api.Post("/configs/:id/keys/:index/enable", configHandler.EnableKey)
	api.Post("/configs/:id/keys/:index/fail", configHandler.MarkKeyFailed)
	api.Get("/configs/:id/keys/:index/stats", configHandler.KeyStats)
	api.Post("/configs/test", configHandler.TestConnection)

	// Memory
	api.Get("/memory/global", memoryHandler.GetGlobal)
	api.Put("/memory/global", memoryHandler.PutGlobal)
	api.Get("/memory/contacts/:id", memoryHandler.GetContact)
	api.Put("/memory/contacts/:id", memoryHandler.PutContact)
	api.Post("/memory/contacts/:id/append", memoryHandler.AppendContact)
	api.Delete("/memory/contacts/:id", memoryHandler.ClearContact)
	api.Post("/memory/contacts/:id/counter", memoryHandler.BumpCounter)
	api.Delete("/memory/contacts/:id/counter", memoryHandler.ResetCounter)

	// Sticker library
	api.Get("/emojis", emojiHandler.List)
	api.Post("/emojis", emojiHandler.Upsert)
	api.Get("/emojis/by-tag/:tag", emojiHandler.GetByTag)
	api.Get("/emojis/:id", emojiHandler.Get)
	api.Delete("/emojis/:id", emojiHandler.Delete)
	api.Put("/emojis/:id/image", emojiHandler.SetImage)

	// Moments and forum posts
	api.Get("/moments", momentHandler.ListMoments)
	api.Post("/moments", momentHandler.UpsertMoment)
	api.Get("/moments/:id", momentHandler.GetMoment)
	api.Delete("/moments/:id", momentHandler.DeleteMoment)
	api.Put("/moments/:id/images", momentHandler.AttachImages)
	api.Post("/moments/:id/comments", momentHandler.AddMomentComment)
	api.Get("/posts", momentHandler.ListPosts)
	api.Post("/posts", momentHandler.CreatePost)
	api.Get("/posts/:id", momentHandler.GetPost)
	api.Delete("/posts/:id", momentHandler.DeletePost)
	api.Post("/posts/:id/comments", momentHandler.AddPostComment)

	// Profile, backgrounds, themes, songs
	api.Get("/profile", profileHandler.GetProfile)
	api.Put("/profile", profileHandler.PutProfile)
	api.Put("/profile/avatar", profileHandler.SetAvatar)
	api.Get("/backgrounds", profileHandler.GetBackgrounds)
	api.Put("/backgrounds/:contactId", profileHandler.SetBackground)
	api.Get("/themes", profileHandler.ListThemes)
	api.Put("/themes", profileHandler.PutTheme)
	api.Get("/songs", profileHandler.ListSongs)
	api.Post("/songs", profileHandler.AddSong)
	api.Delete("/songs/:id", profileHandler.DeleteSong)

	// File store
	api.Get("/files/t/:token", fileHandler.ServeByToken)
	api.Get("/files/by-key/:domain/:key", fileHandler.Lookup)
	api.Get("/files/:fileId/url", fileHandler.URLFor)
	api.Post("/files/release", fileHandler.Release)

	// Request queue
	api.Get("/queue", queueHandler.Status)
	api.Delete("/queue/:id", queueHandler.Cancel)

	// Media
	api.Post("/tts", mediaHandler.Speak)
	api.Get("/images/search", mediaHandler.SearchImages)

	// Export / import / migration
	api.Get("/transfer/export", transferHandler.Export)
	api.Post("/transfer/import", transferHandler.Import)
	api.Get("/migration/estimate", transferHandler.MigrationEstimate)
	api.Post("/migration/run", transferHandler.RunMigration)

	// Event stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(eventsHandler.Handle))

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		requestQueue.Shutdown()

		if err := janitor.Stop(); err != nil {
			log.Printf("⚠️  Error stopping janitor: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Error shutting down server: %v", err)
		}

		if err := db.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
