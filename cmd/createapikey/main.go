package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/storage/postgres"
)

// createapikey mints a standalone API key that is not tied to any Discord
// user. These keys are validated ahead of user-owned keys and are meant
// for trusted integrations provisioned by an operator.
func main() {
	name := flag.String("name", "Standalone Key", "Name for the new API key")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	buf := make([]byte, user.KeyByteLength)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}
	key := hex.EncodeToString(buf)

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewUserRepository(pool, logger)

	rec := &user.LegacyKey{
		ID:        uuid.New(),
		Key:       key,
		Name:      *name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateLegacyKey(context.Background(), rec); err != nil {
		log.Fatalf("Failed to save API key to database: %v", err)
	}

	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n\n", key)
	fmt.Printf("ID: %s\nName: %s\n", rec.ID, rec.Name)
}
