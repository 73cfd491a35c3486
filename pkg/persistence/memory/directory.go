package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/protocol"
)

// Subject is an account known to the in-memory directory.
type Subject struct {
	ID           string
	Email        string
	Phone        string
	RegisteredAt time.Time
	OrderCount   int
}

// Discount is a code issued by an issue_discount action.
type Discount struct {
	Code       string
	SubjectKey string
	Percent    float64
	ExpiresAt  time.Time
}

// Directory is an in-memory account/order directory, promotions ledger and
// template store.
type Directory struct {
	mu        sync.RWMutex
	subjects  map[string]Subject
	orders    map[string]protocol.OrderSummary
	templates map[string]*models.MessageTemplate
	tags      map[string][]string
	discounts []Discount
	now       func() time.Time
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		subjects:  make(map[string]Subject),
		orders:    make(map[string]protocol.OrderSummary),
		templates: make(map[string]*models.MessageTemplate),
		tags:      make(map[string][]string),
		now:       time.Now,
	}
}

func (d *Directory) AddSubject(subject Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subjects[subject.ID] = subject
}

func (d *Directory) AddOrder(orderRef string, summary protocol.OrderSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.orders[orderRef] = summary
}

func (d *Directory) AddTemplate(template *models.MessageTemplate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.templates[template.ID] = template
}

func (d *Directory) DestinationFor(_ context.Context, subjectID string, channel models.Channel) (string, error) {
	subject, err := d.subject(subjectID)
	if err != nil {
		return "", err
	}

	switch channel {
	case models.ChannelEmail:
		return subject.Email, nil
	case models.ChannelSMS:
		return subject.Phone, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}
}

func (d *Directory) OrderCount(_ context.Context, subjectID string) (int, error) {
	subject, err := d.subject(subjectID)
	if err != nil {
		return 0, err
	}

	return subject.OrderCount, nil
}

func (d *Directory) RegisteredAt(_ context.Context, subjectID string) (time.Time, error) {
	subject, err := d.subject(subjectID)
	if err != nil {
		return time.Time{}, err
	}

	return subject.RegisteredAt, nil
}

func (d *Directory) OrderSummary(_ context.Context, orderRef string) (protocol.OrderSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	summary, ok := d.orders[orderRef]
	if !ok {
		return protocol.OrderSummary{}, fmt.Errorf("order %s: %w", orderRef, persistence.ErrSubjectNotFound)
	}

	return summary, nil
}

func (d *Directory) Template(_ context.Context, id string) (*models.MessageTemplate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	template, ok := d.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, persistence.ErrTemplateNotFound)
	}

	copied := *template

	return &copied, nil
}

func (d *Directory) TagSubject(_ context.Context, subjectKey, tag string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !slices.Contains(d.tags[subjectKey], tag) {
		d.tags[subjectKey] = append(d.tags[subjectKey], tag)
	}

	return nil
}

func (d *Directory) IssueDiscount(_ context.Context, subjectKey string, percent float64, validFor time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code := persistence.NewDiscountCode()
	d.discounts = append(d.discounts, Discount{
		Code:       code,
		SubjectKey: subjectKey,
		Percent:    percent,
		ExpiresAt:  d.now().Add(validFor),
	})

	return code, nil
}

// Tags returns the tags applied to a subject.
func (d *Directory) Tags(subjectKey string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.tags[subjectKey])
}

// Discounts returns every code issued so far.
func (d *Directory) Discounts() []Discount {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.discounts)
}

func (d *Directory) subject(subjectID string) (Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subject, ok := d.subjects[subjectID]
	if !ok {
		return Subject{}, fmt.Errorf("subject %s: %w", subjectID, persistence.ErrSubjectNotFound)
	}

	return subject, nil
}
