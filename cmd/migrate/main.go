// Command migrate applies the mail job schema. It runs every *.sql file in
// the migrations directory in lexical order, one transaction per file, so a
// failed statement never leaves a half-applied migration behind. Files are
// written to be re-runnable (CREATE TABLE IF NOT EXISTS and the like), which
// keeps this runner stateless: no schema_migrations bookkeeping table.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, arg := range os.Args[1:] {
		if arg == "--list" {
			listOnly = true
		} else {
			dir = arg
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	ctx := context.Background()

	if listOnly {
		listTables(ctx, db)
		return
	}

	applied, failed := applyDir(ctx, db, dir)
	logger.Info("migrations finished", "applied", applied, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// listTables prints the mail_* tables so an operator can confirm the schema
// is in place without a psql session.
func listTables(ctx context.Context, db *sql.DB) {
	rows, err := db.QueryContext(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE 'mail_%' ORDER BY tablename")
	if err != nil {
		log.Fatalf("Failed to list tables: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("Failed to scan table name: %v", err)
		}
		fmt.Println(name)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to list tables: %v", err)
	}
	if count == 0 {
		fmt.Println("no mail_* tables found, run migrations first")
	}
}

func applyDir(ctx context.Context, db *sql.DB, dir string) (applied, failed int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read migrations dir %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(dir, name)
		stmts, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		if strings.TrimSpace(string(stmts)) == "" {
			continue
		}

		if err := applyOne(ctx, db, string(stmts)); err != nil {
			logger.Error("migration failed", "file", name, "error", err)
			failed++
			continue
		}
		logger.Info("migration applied", "file", name)
		applied++
	}
	return applied, failed
}

func applyOne(ctx context.Context, db *sql.DB, stmts string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmts); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
