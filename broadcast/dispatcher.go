// Package broadcast delivers rendered messages to connected participants.
package broadcast

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type Failure struct {
	RecipientID uuid.UUID
	Name        string
	Err         error
}

// DeliveryReport is kept for observability, a failed recipient never aborts a delivery.
type DeliveryReport struct {
	Recipients int
	Delivered  int
	Failures   []Failure
}

func (r DeliveryReport) Merge(other DeliveryReport) DeliveryReport {
	return DeliveryReport{
		Recipients: r.Recipients + other.Recipients,
		Delivered:  r.Delivered + other.Delivered,
		Failures:   append(append([]Failure(nil), r.Failures...), other.Failures...),
	}
}

// Dispatcher fans a rendered message out, synchronously, on the caller's goroutine.
// Recipients are looked up in the directory on every message.
type Dispatcher struct {
	directory    contract.Directory
	oversight    string
	filterPrefix string
	log          *slog.Logger
}

func NewDispatcher(directory contract.Directory, oversight, filterPrefix string, log *slog.Logger) Dispatcher {
	return Dispatcher{directory: directory, oversight: oversight, filterPrefix: filterPrefix, log: log}
}

// Deliver sends text to every recipient, prefixed when a side channel prefix is given.
func (d Dispatcher) Deliver(text string, recipients []contract.Recipient, sideChannelPrefix *string) DeliveryReport {
	if sideChannelPrefix != nil {
		text = *sideChannelPrefix + text
	}
	report := DeliveryReport{Recipients: len(recipients)}
	for _, recipient := range recipients {
		if err := send(recipient, text); err != nil {
			report.Failures = append(report.Failures, Failure{
				RecipientID: recipient.ID(),
				Name:        recipient.Name(),
				Err:         err,
			})
			continue
		}
		report.Delivered++
	}
	return report
}

// Broadcast picks the audience from the classification: everyone when clean,
// otherwise the sender alone plus an alert to every oversight holder.
func (d Dispatcher) Broadcast(msg domain.RenderedMessage, senderID uuid.UUID) DeliveryReport {
	var report DeliveryReport
	if msg.Blocked {
		var senders []contract.Recipient
		if sender, ok := d.directory.Get(senderID); ok {
			senders = append(senders, sender)
		} else {
			d.log.Debug("Sender left before its filtered message was echoed", "sender", senderID)
		}
		prefix := d.filterPrefix
		report = d.Deliver(msg.Text, senders, nil).
			Merge(d.Deliver(msg.Text, d.directory.ConnectedWithCapability(d.oversight), &prefix))
	} else {
		report = d.Deliver(msg.Text, d.directory.AllConnected(), nil)
	}
	for _, f := range report.Failures {
		d.log.Warn("Delivery failed", "recipient", f.Name, "id", f.RecipientID, "error", f.Err)
	}
	return report
}

// send isolates a recipient, a panicking handle counts as a failed delivery.
func send(recipient contract.Recipient, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrRecipientGone, r)
		}
	}()
	return recipient.Send(text)
}
