// Command bootstrap creates the first admin user and prints its API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/utrscan/utrscan/internal/config"
	"github.com/utrscan/utrscan/internal/mailer"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/repository"
	"github.com/utrscan/utrscan/internal/service"
)

type output struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Key       string `json:"key,omitempty"`
	KeyPrefix string `json:"key_prefix"`
	Created   bool   `json:"created"`
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		name        = flag.String("name", envOr("ADMIN_NAME", config.DefaultAdminName), "Admin display name")
		email       = flag.String("email", os.Getenv("ADMIN_EMAIL"), "Admin email")
		apiKey      = flag.String("api-key", os.Getenv("ADMIN_API_KEY"), "Use this key instead of generating one")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := service.NewUserService(repo, mailer.Disabled{}, metrics.NewNoop(), logger)

	res, err := users.BootstrapAdmin(ctx, service.BootstrapInput{
		Name:   *name,
		Email:  *email,
		APIKey: *apiKey,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap admin:", err)
		os.Exit(1)
	}
	if !res.Created {
		fmt.Fprintln(os.Stderr, "users already exist; nothing to do")
		os.Exit(2)
	}

	out := output{
		UserID:    res.User.ID,
		Name:      res.User.Name,
		Email:     res.User.Email,
		Key:       res.GeneratedKey,
		KeyPrefix: res.User.KeyPrefix,
		Created:   res.Created,
	}

	if err := writeOutput(os.Stdout, *format, out); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func writeOutput(w io.Writer, format string, out output) error {
	switch strings.ToLower(format) {
	case "plain":
		if out.Key == "" {
			_, err := fmt.Fprintf(w, "admin %s created with the supplied key (prefix %s)\n", out.Email, out.KeyPrefix)
			return err
		}
		_, err := fmt.Fprintln(w, out.Key)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("invalid format %q; use plain or json", format)
	}
}
