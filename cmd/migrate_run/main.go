package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("DATABASE_URL not set")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	paths, err := filepath.Glob("migrations/*.sql")
	if err != nil || len(paths) == 0 {
		fmt.Println("No migrations found under migrations/")
		os.Exit(1)
	}
	sort.Strings(paths)

	for _, path := range paths {
		sql, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			fmt.Printf("Migration %s failed: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Applied %s\n", path)
	}
}
