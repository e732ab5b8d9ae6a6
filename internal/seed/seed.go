// Package seed bootstraps a development user so a fresh install is
// usable without an external identity provider.
package seed

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	"github.com/roomvision/roomvision/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	devUserID     = "usr_dev"
	devUserEmail  = "dev@roomvision.local"
	devUserName   = "Dev User"
	devSessionTTL = 90 * 24 * time.Hour
)

// EnsureDevUser seeds the dev account with starting credits and issues a
// session token. The raw token is logged once so it can be used as a
// Bearer credential against the API.
func EnsureDevUser(db *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var rawToken string
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := ensureDevUserTx(ctx, tx, node, cfg.SeedDevCredits)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		rawToken, err = issueDevSessionTx(ctx, tx, node)
		return err
	})
	if err != nil {
		return err
	}

	if rawToken != "" {
		log.Info("seeded development user",
			zap.String("user_id", devUserID),
			zap.String("email", devUserEmail),
			zap.Int64("credits", cfg.SeedDevCredits),
			zap.String("session_token", rawToken),
		)
	}
	return nil
}

func ensureDevUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, credits int64) (bool, error) {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO users (id, email, name, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, devUserID, devUserEmail, devUserName, credits, now, now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if credits > 0 {
		res = tx.WithContext(ctx).Exec(`
			INSERT INTO transactions (id, user_id, type, status, credits, amount_cents, currency, description, created_at)
			VALUES (?, ?, ?, 'completed', ?, 0, 'USD', ?, ?)
		`, node.Generate(), devUserID, string(accountdomain.TransactionTypeSeed), credits, "development starting credits", now)
		if res.Error != nil {
			return false, res.Error
		}
	}
	return true, nil
}

func issueDevSessionTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	rawToken := base64.RawURLEncoding.EncodeToString(buf)
	hash := sha256.Sum256([]byte(rawToken))

	now := time.Now().UTC()
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO sessions (id, user_id, session_token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at)
		VALUES (?, ?, ?, 'seed', '', ?, ?, ?)
	`, node.Generate(), devUserID, hex.EncodeToString(hash[:]), now.Add(devSessionTTL), now, now)
	if res.Error != nil {
		return "", res.Error
	}
	return rawToken, nil
}
