package runtime

import (
	"chat-pipeline/broadcast"
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/format"
	"chat-pipeline/markup"
	"chat-pipeline/render"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Pipeline runs resolve, classify, render and dispatch on the caller's goroutine,
// then hands the audit record over without waiting for it to be stored.
// Messages of one sender are dispatched in the order Handle is called.
type Pipeline struct {
	config     atomic.Pointer[ChatConfig]
	dispatcher broadcast.Dispatcher
	expander   contract.PlaceholderExpander
	audit      contract.AuditSubmitter
	console    contract.Console
	log        *slog.Logger
}

// NewPipeline uses the config's static placeholders when expander is nil.
func NewPipeline(config *ChatConfig, directory contract.Directory, expander contract.PlaceholderExpander,
	audit contract.AuditSubmitter, console contract.Console, log *slog.Logger) *Pipeline {
	p := &Pipeline{
		dispatcher: broadcast.NewDispatcher(directory, domain.CapabilityOversight, domain.FilterAlertPrefix, log),
		expander:   expander,
		audit:      audit,
		console:    console,
		log:        log,
	}
	p.config.Store(config)
	return p
}

// Reload swaps the configuration, passes already running keep the previous snapshot.
func (p *Pipeline) Reload(config *ChatConfig) {
	p.config.Store(config)
	p.log.Info("Chat configuration reloaded")
}

func (p *Pipeline) Config() *ChatConfig {
	return p.config.Load()
}

func (p *Pipeline) Handle(evt domain.MessageEvent) broadcast.DeliveryReport {
	config := p.config.Load()
	sender := domain.Participant{ID: evt.SenderID, Name: evt.SenderName}

	template := format.Resolve(evt.SenderCapabilities, config.Registry)
	// Markup could split a word, the filter always sees the plain body.
	classification := config.Filter.Classify(markup.Strip(evt.RawBody))

	text := render.Render(template, evt.RawBody, evt.SenderCapabilities.Has(domain.CapabilityColor), map[string]string{
		"player_name": evt.SenderName,
		"player_uuid": evt.SenderID.String(),
		"server":      evt.ServerTag,
	})
	text = p.expand(config, sender, text)

	msg := domain.RenderedMessage{Text: text, Blocked: classification.Blocked, Rule: classification.Rule}
	report := p.dispatcher.Broadcast(msg, evt.SenderID)

	if msg.Blocked {
		p.console.Filtered(markup.Plain(text))
		p.log.Info("Message filtered", "sender", evt.SenderName, "rule", msg.Rule, "format", template.Name)
	} else {
		p.console.Broadcast(markup.Plain(text))
	}
	p.audit.Submit(toAuditRecord(evt, msg.Blocked))
	return report
}

func (p *Pipeline) expand(config *ChatConfig, sender domain.Participant, text string) string {
	if p.expander != nil {
		return p.expander.Expand(sender, text)
	}
	return render.Substitute(text, config.Placeholders)
}

func toAuditRecord(evt domain.MessageEvent, filtered bool) domain.AuditRecord {
	at := evt.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return domain.AuditRecord{
		ID:         uuid.New(),
		ServerTag:  evt.ServerTag,
		Channel:    domain.GlobalChannel,
		SenderID:   evt.SenderID,
		SenderName: evt.SenderName,
		Body:       evt.RawBody,
		Filtered:   filtered,
		Timestamp:  at.UTC(),
	}
}
