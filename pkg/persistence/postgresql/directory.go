package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/protocol"
)

// Directory reads customers and orders from the platform tables and records
// tags, discount codes and templates next to them.
type Directory struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDirectory creates a new directory.
func NewDirectory(db *sql.DB, logger *slog.Logger) *Directory {
	return &Directory{db: db, logger: logger}
}

func (d *Directory) DestinationFor(ctx context.Context, subjectID string, channel models.Channel) (string, error) {
	var column string

	switch channel {
	case models.ChannelEmail:
		column = "email"
	case models.ChannelSMS:
		column = "phone"
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}

	var destination sql.NullString

	err := d.db.QueryRowContext(ctx, `SELECT `+column+` FROM customers WHERE id = $1`, subjectID).Scan(&destination)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("subject %s: %w", subjectID, persistence.ErrSubjectNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("failed to query destination of %s: %w", subjectID, err)
	}

	return destination.String, nil
}

func (d *Directory) OrderCount(ctx context.Context, subjectID string) (int, error) {
	var count int

	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, subjectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders of %s: %w", subjectID, err)
	}

	return count, nil
}

func (d *Directory) RegisteredAt(ctx context.Context, subjectID string) (time.Time, error) {
	var registeredAt time.Time

	err := d.db.QueryRowContext(ctx, `SELECT registered_at FROM customers WHERE id = $1`, subjectID).Scan(&registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("subject %s: %w", subjectID, persistence.ErrSubjectNotFound)
	}

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query registration of %s: %w", subjectID, err)
	}

	return registeredAt, nil
}

func (d *Directory) OrderSummary(ctx context.Context, orderRef string) (protocol.OrderSummary, error) {
	var summary protocol.OrderSummary

	err := d.db.QueryRowContext(ctx, `SELECT total, item_count FROM orders WHERE id = $1`, orderRef).
		Scan(&summary.Value, &summary.ItemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.OrderSummary{}, fmt.Errorf("order %s: %w", orderRef, persistence.ErrSubjectNotFound)
	}

	if err != nil {
		return protocol.OrderSummary{}, fmt.Errorf("failed to query order %s: %w", orderRef, err)
	}

	return summary, nil
}

func (d *Directory) TagSubject(ctx context.Context, subjectKey, tag string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO customer_tags (subject_key, tag) VALUES ($1, $2)
		ON CONFLICT (subject_key, tag) DO NOTHING
	`, subjectKey, tag)
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", subjectKey, err)
	}

	return nil
}

func (d *Directory) IssueDiscount(ctx context.Context, subjectKey string, percent float64, validFor time.Duration) (string, error) {
	code := persistence.NewDiscountCode()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO discount_codes (code, subject_key, percent, expires_at) VALUES ($1, $2, $3, $4)
	`, code, subjectKey, percent, time.Now().UTC().Add(validFor))
	if err != nil {
		return "", fmt.Errorf("failed to issue discount for %s: %w", subjectKey, err)
	}

	return code, nil
}

func (d *Directory) Template(ctx context.Context, id string) (*models.MessageTemplate, error) {
	var template models.MessageTemplate

	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, channel, subject, body FROM message_templates WHERE id = $1
	`, id).Scan(&template.ID, &template.Name, &template.Channel, &template.Subject, &template.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, persistence.ErrTemplateNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query template %s: %w", id, err)
	}

	return &template, nil
}

// SaveTemplate upserts a template.
func (d *Directory) SaveTemplate(ctx context.Context, template *models.MessageTemplate) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO message_templates (id, name, channel, subject, body) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body
	`, template.ID, template.Name, template.Channel, template.Subject, template.Body)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}
