package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"econgrid.ai/internal/persistence/indexdb"
	"econgrid.ai/internal/persistence/redisstream"
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	Stats() indexdb.Stats
	RecordRun(runID, worldID string, seed int64, startTick uint64, scenario any) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("ECONGRID_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(IndexPath(worldDir))
	default:
		return nil, fmt.Errorf("unsupported ECONGRID_INDEX_BACKEND: %s", backend)
	}
}

// IndexPath is where the sqlite index lives for a world directory.
func IndexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openPublisher(addr, worldID, runID string, logger *log.Logger) (*redisstream.Publisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}
	pub, err := redisstream.New(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("ECONGRID_REDIS_PASSWORD"),
		DB:       envInt("ECONGRID_REDIS_DB", 0),
	}, worldID, runID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pub.Ping(ctx); err != nil {
		// Keep going: the sim never depends on redis, and it may come up later.
		logger.Printf("redis %s unreachable: %v", addr, err)
	}
	return pub, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
