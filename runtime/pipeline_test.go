package runtime

import (
	"chat-pipeline/domain"
	"chat-pipeline/mocks"
	"chat-pipeline/render"
	"chat-pipeline/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const pipelineConfig = `
formats:
  admin:
    prefix: "[Admin] "
    message: "%player_name%: %message%"
  default:
    message: "<%player_name%> %message%"
default-format: default
filter:
  - "spam"
  - name: invites
    glob: "*discord.gg*"
placeholders:
  network: "ElytraPvP"
`

type inbox struct {
	mu       sync.Mutex
	id       uuid.UUID
	name     string
	received []string
}

func newInbox(name string) *inbox {
	return &inbox{id: uuid.New(), name: name}
}

func (i *inbox) ID() uuid.UUID { return i.id }
func (i *inbox) Name() string  { return i.name }
func (i *inbox) Send(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.received = append(i.received, text)
	return nil
}

func (i *inbox) Received() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.received...)
}

func parseConfig(t *testing.T, data string) *ChatConfig {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	config, err := NewChatConfigLoader(time.Second, log).Parse([]byte(data))
	require.NoError(t, err)
	return config
}

func TestPipeline_CleanMessageReachesEveryone(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)

	// Given three connected participants, none with special permissions
	steve, alex, herobrine := newInbox("Steve"), newInbox("Alex"), newInbox("Herobrine")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	directory.Subscribe(alex)
	directory.Subscribe(herobrine)
	audit := NewAuditLogger(10, log)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, nil, audit, console, log)

	console.EXPECT().Broadcast("<Steve> Hello world").Times(1)

	// When Steve sends a colored message without the color permission
	report := pipeline.Handle(domain.MessageEvent{
		SenderID:           steve.ID(),
		SenderName:         "Steve",
		SenderCapabilities: domain.NewCapabilitySet(),
		RawBody:            "Hello &cworld",
		ServerTag:          "lobby-1",
		ReceivedAt:         time.Now(),
	})

	// Then the default template wraps the stripped body and everyone receives it
	req.Equal(3, report.Recipients)
	req.Equal(3, report.Delivered)
	req.Empty(report.Failures)
	for _, r := range []*inbox{steve, alex, herobrine} {
		req.Equal([]string{"<Steve> Hello world"}, r.Received())
	}

	// And exactly one audit record carries the raw body
	req.Len(audit.Queue(), 1)
	record := <-audit.Queue()
	req.Equal("Hello &cworld", record.Body)
	req.Equal(domain.GlobalChannel, record.Channel)
	req.Equal("lobby-1", record.ServerTag)
	req.Equal(steve.ID(), record.SenderID)
	req.Equal("Steve", record.SenderName)
	req.False(record.Filtered)
	req.NotEqual(uuid.Nil, record.ID)
}

func TestPipeline_ColorAllowedKeepsMarkup(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)

	steve := newInbox("Steve")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, nil, NewAuditLogger(10, log), console, log)

	// The console always receives plain text
	console.EXPECT().Broadcast("[Admin] Steve: Hello world").Times(1)

	// When an admin holding the color permission sends a colored message
	pipeline.Handle(domain.MessageEvent{
		SenderID:           steve.ID(),
		SenderName:         "Steve",
		SenderCapabilities: domain.NewCapabilitySet("format.admin", domain.CapabilityColor),
		RawBody:            "Hello &cworld",
	})

	// Then the admin template is used and the markup survives
	req.Equal([]string{"[Admin] Steve: Hello &cworld"}, steve.Received())
}

func TestPipeline_BlockedMessage(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)

	// Given a sender, a bystander and a moderator
	steve, alex, mod := newInbox("Steve"), newInbox("Alex"), newInbox("Mod")
	permissions := NewStaticPermissions(nil, map[string][]string{"mod": {domain.CapabilityOversight}})
	directory := NewRegistry(permissions)
	directory.Subscribe(steve)
	directory.Subscribe(alex)
	directory.Subscribe(mod)
	audit := NewAuditLogger(10, log)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, nil, audit, console, log)

	console.EXPECT().Filtered("<Steve> join Discord.gg/abc").Times(1)

	// When Steve advertises an invite link
	report := pipeline.Handle(domain.MessageEvent{
		SenderID:           steve.ID(),
		SenderName:         "Steve",
		SenderCapabilities: domain.NewCapabilitySet(),
		RawBody:            "join Discord.gg/abc",
		ServerTag:          "lobby-1",
	})

	// Then only the sender sees the message and the moderator gets an alert
	req.Equal(2, report.Recipients)
	req.Equal(2, report.Delivered)
	req.Equal([]string{"<Steve> join Discord.gg/abc"}, steve.Received())
	req.Empty(alex.Received())
	req.Equal([]string{domain.FilterAlertPrefix + "<Steve> join Discord.gg/abc"}, mod.Received())

	// And the audit record is flagged with the raw body
	record := <-audit.Queue()
	req.True(record.Filtered)
	req.Equal("join Discord.gg/abc", record.Body)
	req.False(record.Timestamp.IsZero())
}

func TestPipeline_ExternalPlaceholders(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)
	expander := mocks.NewMockPlaceholderExpander(ctrl)

	steve := newInbox("Steve")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, expander, NewAuditLogger(10, log), console, log)

	// The expander runs once, after internal rendering
	expander.EXPECT().
		Expand(domain.Participant{ID: steve.ID(), Name: "Steve"}, "<Steve> welcome to %network%").
		Return("<Steve> welcome to ElytraPvP").Times(1)
	console.EXPECT().Broadcast(gomock.Any()).Times(1)

	pipeline.Handle(domain.MessageEvent{
		SenderID:   steve.ID(),
		SenderName: "Steve",
		RawBody:    "welcome to %network%",
	})

	req.Equal([]string{"<Steve> welcome to ElytraPvP"}, steve.Received())
}

func TestPipeline_StaticPlaceholdersWithoutExpander(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)

	steve := newInbox("Steve")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, nil, NewAuditLogger(10, log), console, log)
	console.EXPECT().Broadcast(gomock.Any()).Times(1)

	pipeline.Handle(domain.MessageEvent{SenderID: steve.ID(), SenderName: "Steve", RawBody: "on %network% %unknown%"})

	req.Equal([]string{"<Steve> on ElytraPvP %unknown%"}, steve.Received())
}

func TestPipeline_SubmitDoesNotWaitForTheStore(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)
	store := mocks.NewMockAuditStore(ctrl)

	// Given a store taking far longer than a chat turn
	release := make(chan struct{})
	stored := make(chan domain.AuditRecord, 1)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, record domain.AuditRecord) error {
			<-release
			stored <- record
			return nil
		}).Times(1)
	console.EXPECT().Broadcast(gomock.Any()).Times(1)

	steve := newInbox("Steve")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	audit := NewAuditLogger(10, log)
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond), audit, store, Settings{
		NumberOfWorkers:      1,
		WriteTimeout:         time.Minute,
		MetricInterval:       time.Hour,
		LowCapacityThreshold: 80,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = orchestrator.Start(ctx) }()

	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, nil, audit, console, log)

	// When a message is handled
	done := make(chan struct{})
	go func() {
		pipeline.Handle(domain.MessageEvent{SenderID: steve.ID(), SenderName: "Steve", RawBody: "hello"})
		close(done)
	}()

	// Then delivery completes while the write is still pending
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Handle waited for the audit store")
	}
	req.Equal([]string{"<Steve> hello"}, steve.Received())

	close(release)
	select {
	case record := <-stored:
		req.Equal("hello", record.Body)
	case <-time.After(2 * time.Second):
		req.Fail("audit record never stored")
	}
	orchestrator.Stop()
}

func TestPipeline_Reload(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	console := mocks.NewMockConsole(ctrl)

	steve := newInbox("Steve")
	directory := NewRegistry(NewStaticPermissions(nil, nil))
	directory.Subscribe(steve)
	pipeline := NewPipeline(parseConfig(t, pipelineConfig), directory, render.NewStaticExpander(nil),
		NewAuditLogger(10, log), console, log)
	console.EXPECT().Broadcast(gomock.Any()).Times(2)

	pipeline.Handle(domain.MessageEvent{SenderID: steve.ID(), SenderName: "Steve", RawBody: "one"})

	// When the configuration is swapped
	pipeline.Reload(parseConfig(t, "formats:\n  default: \"%player_name% >> %message%\"\n"))
	pipeline.Handle(domain.MessageEvent{SenderID: steve.ID(), SenderName: "Steve", RawBody: "two"})

	// Then the next message uses the new templates
	req.Equal([]string{"<Steve> one", "Steve >> two"}, steve.Received())
}
