package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/openalbum/albumd/config"
	"github.com/openalbum/albumd/handlers"
	"github.com/openalbum/albumd/media"
	"github.com/openalbum/albumd/metadata"
	"github.com/openalbum/albumd/storage"
	"github.com/openalbum/albumd/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	for _, p := range []string{cfg.RootDirectory, cfg.ArchiveStagingPath} {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	ctx := context.Background()

	mongoClient, err := storage.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize document store: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting document store: %v", err)
		}
	}()
	albumStore := storage.NewAlbumStore(mongoClient.Database(cfg.MongoDatabase), cfg.AlbumsCollection)

	redisClient, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize cache store: %v", err)
	}
	defer redisClient.Close()
	recencyStream := storage.NewRedisStream(redisClient, cfg.RecentStreamName)

	extractor := metadata.NewExifExtractor()
	processor := media.NewProcessor()

	log.Printf("Initializing resize worker pool (Workers: %d, Queue Size: %d)...", cfg.NumResizeWorkers, cfg.ResizeQueueSize)
	resizePool := workers.NewResizePool(cfg.ResizeQueueSize, cfg.NumResizeWorkers)
	defer resizePool.Stop()

	log.Printf("Serving albums from root: %s", cfg.RootDirectory)
	log.Printf("Using document store: %s/%s.%s", cfg.MongoURI, cfg.MongoDatabase, cfg.AlbumsCollection)
	log.Printf("Recency stream: %s", recencyStream.Key())

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	albumHandler := &handlers.AlbumHandler{
		Cfg:       cfg,
		Docs:      albumStore,
		Stream:    recencyStream,
		Extractor: extractor,
		Processor: processor,
		Resizer:   resizePool,
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/albums", func(r chi.Router) {
			r.Post("/", albumHandler.CreateAlbum)
			r.Post("/import", albumHandler.ImportAlbum)
			r.Get("/", albumHandler.ListAlbums)
			r.Get("/recent", albumHandler.RecentlyAdded)
			r.Get("/authors", albumHandler.PublicAuthors)
			r.Route("/{album_identifier}", func(r chi.Router) {
				r.Get("/", albumHandler.GetAlbum)
				r.Put("/", albumHandler.UpdateAlbum)
				r.Delete("/", albumHandler.DeleteAlbum)
				r.Route("/images", func(r chi.Router) {
					r.Get("/", albumHandler.GetAlbumImages)
					r.Post("/", albumHandler.AddImage)
					r.Route("/{image_name}", func(r chi.Router) {
						r.Put("/", albumHandler.UpdateImage)
						r.Post("/regenerate", albumHandler.RegenerateImage)
						r.Delete("/", albumHandler.DeleteImage)
					})
				})
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
