// Command createuser provisions API users. Public registration is
// disabled, so this is the only way accounts get created.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"proptrack/internal/auth"
	"proptrack/internal/backend"
	"proptrack/internal/config"
	applog "proptrack/internal/log"
)

func main() {
	_ = godotenv.Load()

	username := flag.String("username", "", "login name (required)")
	email := flag.String("email", "", "email address (required)")
	flag.Parse()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	*username = strings.TrimSpace(*username)
	*email = strings.TrimSpace(*email)
	if *username == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: createuser -username <name> -email <address>")
		os.Exit(2)
	}

	password, err := readPassword()
	if err != nil {
		logger.Error("Failed to read password", "error", err)
		os.Exit(1)
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}
	defer result.Cleanup()

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", "error", err)
		os.Exit(1)
	}

	user, err := result.Repo.CreateUser(ctx, *username, *email, hash)
	if err != nil {
		logger.Error("Failed to create user", "error", err, "username", *username)
		os.Exit(1)
	}

	fmt.Printf("created user %d (%s)\n", user.ID, user.Username)
}

// readPassword takes the password from the CREATEUSER_PASSWORD env var or,
// when unset, reads one line from stdin.
func readPassword() (string, error) {
	if p := os.Getenv("CREATEUSER_PASSWORD"); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
