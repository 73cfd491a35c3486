// Package message provides the message node executor: it renders a template
// against the traversal context and hands the result to the flow's channel.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/dukex/marketflow/pkg/template"
)

var (
	ErrMissingConfig    = errors.New("message node has no configuration")
	ErrMissingContent   = errors.New("message has no content")
	ErrNoDestination    = errors.New("no destination address")
	ErrNoDispatcher     = errors.New("no dispatcher for channel")
	ErrDispatchRejected = errors.New("dispatch rejected")
	ErrNoTemplateStore  = errors.New("message references a template but no template store is configured")
)

type Executor struct {
	dispatchers map[models.Channel]protocol.Dispatcher
	templates   protocol.TemplateStore
	directory   protocol.Directory
	logger      *slog.Logger
}

var _ protocol.NodeExecutor = (*Executor)(nil)

// NewExecutor builds a message executor. templates and directory may be nil;
// a nil directory means destinations must come with the event.
func NewExecutor(
	dispatchers []protocol.Dispatcher,
	templates protocol.TemplateStore,
	directory protocol.Directory,
	logger *slog.Logger,
) *Executor {
	byChannel := make(map[models.Channel]protocol.Dispatcher, len(dispatchers))
	for _, dispatcher := range dispatchers {
		byChannel[dispatcher.Channel()] = dispatcher
	}

	return &Executor{
		dispatchers: byChannel,
		templates:   templates,
		directory:   directory,
		logger:      logger.With("module", "message_node"),
	}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeMessage
}

func (e *Executor) Execute(ctx context.Context, step *protocol.Step) (protocol.Outcome, error) {
	cfg := step.Node.Message
	if cfg == nil {
		return protocol.Outcome{}, ErrMissingConfig
	}

	dispatcher, ok := e.dispatchers[step.Flow.Channel]
	if !ok {
		return protocol.Outcome{}, fmt.Errorf("%w %q", ErrNoDispatcher, step.Flow.Channel)
	}

	subject, body, err := e.content(ctx, cfg)
	if err != nil {
		return protocol.Outcome{}, err
	}

	vars := template.Vars(step.Context)

	renderedSubject, err := template.Render(subject, vars)
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("failed to render subject: %w", err)
	}

	renderedBody, err := template.Render(body, vars)
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("failed to render body: %w", err)
	}

	destination, err := e.destination(ctx, step.Context, step.Flow.Channel)
	if err != nil {
		return protocol.Outcome{}, err
	}

	result, err := dispatcher.Send(ctx, protocol.Message{
		To:      destination,
		Subject: renderedSubject,
		Body:    renderedBody,
		Metadata: map[string]string{
			"flow_id":     step.Flow.ID,
			"node_id":     step.Node.ID,
			"subject_key": step.Context.SubjectKey(),
		},
	})
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("failed to dispatch message: %w", err)
	}

	if !result.Success {
		return protocol.Outcome{ProviderMessageID: result.ProviderMessageID}, fmt.Errorf("%w: %s", ErrDispatchRejected, result.Error)
	}

	e.logger.DebugContext(ctx, "message dispatched",
		"flow_id", step.Flow.ID,
		"node_id", step.Node.ID,
		"provider_message_id", result.ProviderMessageID,
	)

	return protocol.Outcome{ProviderMessageID: result.ProviderMessageID}, nil
}

// content returns the raw subject and body, preferring the stored template.
// A subject set on the node overrides the template's.
func (e *Executor) content(ctx context.Context, cfg *models.MessageConfig) (string, string, error) {
	subject, body := cfg.Subject, cfg.Content

	if cfg.TemplateID != "" {
		if e.templates == nil {
			return "", "", ErrNoTemplateStore
		}

		tmpl, err := e.templates.Template(ctx, cfg.TemplateID)
		if err != nil {
			return "", "", fmt.Errorf("failed to load template %s: %w", cfg.TemplateID, err)
		}

		body = tmpl.Body
		if subject == "" {
			subject = tmpl.Subject
		}
	}

	if body == "" {
		return "", "", ErrMissingContent
	}

	return subject, body, nil
}

func (e *Executor) destination(ctx context.Context, execCtx *models.ExecutionContext, channel models.Channel) (string, error) {
	if execCtx.DestinationAddress != "" {
		return execCtx.DestinationAddress, nil
	}

	if e.directory == nil || execCtx.SubjectID == "" {
		return "", ErrNoDestination
	}

	destination, err := e.directory.DestinationFor(ctx, execCtx.SubjectID, channel)
	if persistence.IsSubjectNotFound(err) {
		return "", fmt.Errorf("%w for subject %s", ErrNoDestination, execCtx.SubjectID)
	}

	if err != nil {
		return "", fmt.Errorf("failed to resolve destination: %w", err)
	}

	if destination == "" {
		return "", fmt.Errorf("%w for subject %s", ErrNoDestination, execCtx.SubjectID)
	}

	return destination, nil
}
