package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/hydromis/wfengine/pkg/persistence/file"
	"github.com/hydromis/wfengine/pkg/persistence/postgresql"
)

// NewPersistence picks the backend from the URL scheme. URLs without a known scheme are file paths.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "file"
	}
}
