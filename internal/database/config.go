package dbconfig

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cogniview/pkg/database/client"
	"cogniview/schema"
)

// Connect opens the MySQL pool and waits until it answers a ping.
func Connect(ctx context.Context, logger *zap.Logger) (*sql.DB, error) {
	config := client.ReadConfig()

	db, err := client.Open("mysql_cogniview", config)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			logger.Info("Database connected successfully",
				zap.String("host", config.Host),
				zap.String("name", config.Name))
			return db, nil
		}
		logger.Warn("Database ping failed, retrying", zap.Int("attempt", attempt), zap.Error(pingErr))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("connect database: %w", pingErr)
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	for _, stmt := range schema.Tables() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info("Database schema is up to date", zap.Int("tables", len(schema.Tables())))
	return nil
}
