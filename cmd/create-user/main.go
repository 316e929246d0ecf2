// CLI tool to create a user with a bcrypt-hashed password and an empty
// biometric profile.
// Usage: go run ./cmd/create-user
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lg/nutrition-api/internal/config"
	"lg/nutrition-api/internal/nutrition"
	"lg/nutrition-api/internal/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	fmt.Print("Timezone (blank for default): ")
	tz, _ := reader.ReadString('\n')
	tz = strings.TrimSpace(tz)

	tzPatch := nutrition.ProfilePatch{Timezone: &tz}
	if tz != "" {
		if err := tzPatch.Validate(time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid timezone: %v\n", err)
			os.Exit(1)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		os.Exit(1)
	}

	authToken := uuid.New().String()

	tx := postgres.NewTxManager(pool)
	users := postgres.NewUserRepo(pool)
	profiles := postgres.NewProfileRepo(pool, tx)

	var userID int
	err = tx.RunInTx(ctx, func(ctx context.Context) error {
		id, err := users.Create(ctx, username, email, string(hash), authToken)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		userID = id
		if err := profiles.Create(ctx, id); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating user: %v\n", err)
		os.Exit(1)
	}

	if tz != "" {
		if _, err := profiles.Patch(ctx, userID, tzPatch); err != nil {
			fmt.Fprintf(os.Stderr, "User created, but setting the timezone failed: %v\n", err)
		}
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("  ID:         %d\n", userID)
	fmt.Printf("  Username:   %s\n", username)
	fmt.Printf("  Auth Token: %s\n", authToken)
}
