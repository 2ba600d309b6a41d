package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"dataset-manager/internal/database"
)

const (
	// Default database directory path
	defaultDatabaseDir = "/database"
	minTokenLength     = 8
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Get database directory from env or default
	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "datasets.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "set":
		if !setToken(db) {
			os.Exit(1)
		}
	case "status":
		showStatus(db)
	case "clear":
		if !clearToken(db) {
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Dataset Manager API Token Management")
	fmt.Println("")
	fmt.Println("Usage: tokenctl <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  set     - Set or replace the API token")
	fmt.Println("  status  - Check if a token is configured")
	fmt.Println("  clear   - Remove the token (disables authentication)")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func setToken(db *database.Database) bool {
	fmt.Print("New API token: ")
	token, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		return false
	}

	fmt.Print("Confirm token: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		return false
	}

	if !bytes.Equal(token, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Tokens do not match")
		return false
	}

	if len(token) < minTokenLength {
		fmt.Fprintf(os.Stderr, "Error: Token must be at least %d characters\n", minTokenLength)
		return false
	}

	hash, err := bcrypt.GenerateFromPassword(token, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to hash token: %v\n", err)
		return false
	}

	if err := db.SetTokenHash(string(hash)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to store token: %v\n", err)
		return false
	}

	fmt.Println("Token updated successfully.")
	return true
}

func showStatus(db *database.Database) {
	if db.HasToken() {
		fmt.Println("Status: API token is configured")
	} else {
		fmt.Println("Status: No token configured (API runs unauthenticated)")
	}
}

func clearToken(db *database.Database) bool {
	if !db.HasToken() {
		fmt.Println("No token configured; nothing to clear.")
		return true
	}

	if err := db.ClearToken(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to clear token: %v\n", err)
		return false
	}

	fmt.Println("Token cleared. The API now runs unauthenticated.")
	return true
}
