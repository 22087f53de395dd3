package broadcast

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"chat-pipeline/mocks"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRecipient(ctrl *gomock.Controller, name string) *mocks.MockRecipient {
	r := mocks.NewMockRecipient(ctrl)
	id := uuid.New()
	r.EXPECT().ID().Return(id).AnyTimes()
	r.EXPECT().Name().Return(name).AnyTimes()
	return r
}

func newDispatcher(directory contract.Directory) Dispatcher {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewDispatcher(directory, domain.CapabilityOversight, domain.FilterAlertPrefix, log)
}

func TestDispatcher_CleanReachesEveryone(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory := mocks.NewMockDirectory(ctrl)

	sender := newRecipient(ctrl, "Steve")
	alex := newRecipient(ctrl, "Alex")
	staff := newRecipient(ctrl, "Mod")

	// Given three connected participants, the sender included
	directory.EXPECT().AllConnected().Return([]contract.Recipient{sender, alex, staff}).Times(1)

	// Then each of them receives the text exactly once, unmodified
	for _, r := range []*mocks.MockRecipient{sender, alex, staff} {
		r.EXPECT().Send("Steve: hi").Return(nil).Times(1)
	}

	report := newDispatcher(directory).Broadcast(domain.RenderedMessage{Text: "Steve: hi"}, sender.ID())
	req.Equal(3, report.Recipients)
	req.Equal(3, report.Delivered)
	req.Empty(report.Failures)
}

func TestDispatcher_BlockedReachesSenderAndOversight(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory := mocks.NewMockDirectory(ctrl)

	sender := newRecipient(ctrl, "Steve")
	mod1 := newRecipient(ctrl, "Mod1")
	mod2 := newRecipient(ctrl, "Mod2")

	directory.EXPECT().Get(sender.ID()).Return(sender, true).Times(1)
	directory.EXPECT().ConnectedWithCapability(domain.CapabilityOversight).
		Return([]contract.Recipient{mod1, mod2}).Times(1)
	// Given AllConnected is never queried for a blocked message
	directory.EXPECT().AllConnected().Times(0)

	// Then the sender sees its message as sent and staff gets the alert
	sender.EXPECT().Send("Steve: spam").Return(nil).Times(1)
	mod1.EXPECT().Send("&c(filter) Steve: spam").Return(nil).Times(1)
	mod2.EXPECT().Send("&c(filter) Steve: spam").Return(nil).Times(1)

	report := newDispatcher(directory).Broadcast(
		domain.RenderedMessage{Text: "Steve: spam", Blocked: true, Rule: "spam"}, sender.ID())
	req.Equal(3, report.Recipients)
	req.Equal(3, report.Delivered)
}

func TestDispatcher_BlockedSenderGone(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory := mocks.NewMockDirectory(ctrl)
	mod := newRecipient(ctrl, "Mod")

	senderID := uuid.New()
	directory.EXPECT().Get(senderID).Return(nil, false).Times(1)
	directory.EXPECT().ConnectedWithCapability(domain.CapabilityOversight).
		Return([]contract.Recipient{mod}).Times(1)
	mod.EXPECT().Send("&c(filter) x").Return(nil).Times(1)

	report := newDispatcher(directory).Broadcast(domain.RenderedMessage{Text: "x", Blocked: true}, senderID)
	req.Equal(1, report.Delivered)
}

func TestDispatcher_FailureDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken := newRecipient(ctrl, "Broken")
	panicking := newRecipient(ctrl, "Panicking")
	alex := newRecipient(ctrl, "Alex")

	// Given one recipient fails and another panics
	broken.EXPECT().Send("hello").Return(errors.ErrOutboundFull).Times(1)
	panicking.EXPECT().Send("hello").DoAndReturn(func(string) error { panic("closed pipe") }).Times(1)
	alex.EXPECT().Send("hello").Return(nil).Times(1)

	report := newDispatcher(mocks.NewMockDirectory(ctrl)).
		Deliver("hello", []contract.Recipient{broken, panicking, alex}, nil)

	// Then the last recipient still received the message
	req.Equal(3, report.Recipients)
	req.Equal(1, report.Delivered)
	req.Len(report.Failures, 2)
	req.ErrorIs(report.Failures[0].Err, errors.ErrOutboundFull)
	req.Equal("Broken", report.Failures[0].Name)
	req.ErrorIs(report.Failures[1].Err, errors.ErrRecipientGone)
	req.Equal(panicking.ID(), report.Failures[1].RecipientID)
}

func TestDispatcher_DeliverWithPrefix(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r := newRecipient(ctrl, "Mod")
	r.EXPECT().Send(">> text").Return(nil).Times(1)

	prefix := ">> "
	report := newDispatcher(mocks.NewMockDirectory(ctrl)).Deliver("text", []contract.Recipient{r}, &prefix)
	req.Equal(1, report.Delivered)

	// And an empty audience is not an error
	empty := newDispatcher(mocks.NewMockDirectory(ctrl)).Deliver("text", nil, nil)
	req.Equal(DeliveryReport{}, empty)
}
