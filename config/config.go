package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	defaultMongoURI         = "mongodb://localhost:27017"
	defaultMongoDatabase    = "albumd"
	defaultAlbumsCollection = "albums"
	defaultRedisURL         = "redis://localhost:6379/0"
	defaultRecentStreamName = "recent-albums"

	defaultResizeQueueSize  = 200
	defaultNumResizeWorkers = 4
)

type Config struct {
	// root directory holding album folders (must contain the "public" marker
	// segment for URL derivation)
	RootDirectory string

	// archive intake: where uploaded archives are staged before unpacking
	ArchiveStagingPath string

	// document store
	MongoURI         string
	MongoDatabase    string
	AlbumsCollection string

	// cache/stream store
	RedisURL         string
	RecentStreamName string

	// background size-regeneration workers
	ResizeQueueSize  int
	NumResizeWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("ROOT_DIRECTORY", filepath.Join(".", "public", "albums"))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
	}

	staging := getEnvOrDefault("ARCHIVE_STAGING_PATH", filepath.Join(".", "archive_staging"))
	absStaging, err := filepath.Abs(staging)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for archive staging '%s': %w", staging, err)
	}

	cfg := Config{
		RootDirectory:      absRoot,
		ArchiveStagingPath: absStaging,
		MongoURI:           getEnvOrDefault("MONGO_URI", defaultMongoURI),
		MongoDatabase:      getEnvOrDefault("MONGO_DATABASE", defaultMongoDatabase),
		AlbumsCollection:   getEnvOrDefault("ALBUMS_COLLECTION", defaultAlbumsCollection),
		RedisURL:           getEnvOrDefault("REDIS_URL", defaultRedisURL),
		RecentStreamName:   getEnvOrDefault("RECENT_STREAM_NAME", defaultRecentStreamName),
		ResizeQueueSize:    getEnvIntOrDefault("RESIZE_QUEUE_SIZE", defaultResizeQueueSize),
		NumResizeWorkers:   getEnvIntOrDefault("NUM_RESIZE_WORKERS", defaultNumResizeWorkers),
	}

	return cfg, nil
}
