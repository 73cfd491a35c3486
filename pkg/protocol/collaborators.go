package protocol

import (
	"context"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

// OrderSummary is what condition nodes need to know about an order or cart.
type OrderSummary struct {
	Value     float64
	ItemCount int
}

// Directory resolves account and order facts owned by the surrounding
// platform. Lookups for unknown subjects or orders return an error wrapping
// persistence.ErrSubjectNotFound.
type Directory interface {
	DestinationFor(ctx context.Context, subjectID string, channel models.Channel) (string, error)
	OrderCount(ctx context.Context, subjectID string) (int, error)
	RegisteredAt(ctx context.Context, subjectID string) (time.Time, error)
	OrderSummary(ctx context.Context, orderRef string) (OrderSummary, error)
}

// Promotions performs the side effects of action nodes.
type Promotions interface {
	TagSubject(ctx context.Context, subjectKey, tag string) error
	IssueDiscount(ctx context.Context, subjectKey string, percent float64, validFor time.Duration) (string, error)
}

// TemplateStore returns stored message templates by id.
type TemplateStore interface {
	Template(ctx context.Context, id string) (*models.MessageTemplate, error)
}
