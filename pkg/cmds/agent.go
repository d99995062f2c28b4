package cmds

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/inference"
	"github.com/go-go-golems/turnloop/pkg/inference/fixtures"
	"github.com/go-go-golems/turnloop/pkg/inference/middleware"
	"github.com/go-go-golems/turnloop/pkg/inference/session"
	"github.com/go-go-golems/turnloop/pkg/inference/toolloop"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/menu"
	"github.com/go-go-golems/turnloop/pkg/steps/ai"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
	"github.com/go-go-golems/turnloop/pkg/tokens"
	"github.com/go-go-golems/turnloop/pkg/turns/serde"
	"github.com/go-go-golems/turnloop/pkg/turns/store"
)

const eventTopic = "chat"

// HostAgent runs the menu host agent: a session with the menu tools, a
// provider chosen by the settings, and an event router printing the
// transcript as it grows.
type HostAgent struct {
	Settings *settings.Settings
	Printer  events.PrinterOptions
	// EventsFile receives every event as NDJSON when set.
	EventsFile string
	// SaveTranscript writes the final transcript as YAML when set.
	SaveTranscript string
	// Store is a SQLite database the transcript is saved to when set.
	Store string
	// Resume continues the conversation saved in this transcript YAML file.
	Resume string
	// RawEvents receives every event as indented JSON when set.
	RawEvents io.Writer
	Verbose   bool
}

// Turn is the function a Conversation calls for each user input.
type Turn func(ctx context.Context, input string) error

// Conversation drives turns until it returns.
type Conversation func(ctx context.Context, turn Turn) error

// Inputs returns a Conversation running the given inputs in order.
func Inputs(inputs ...string) Conversation {
	return func(ctx context.Context, turn Turn) error {
		for _, in := range inputs {
			if err := turn(ctx, in); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewRegistry returns a registry holding the menu tools.
func NewRegistry() (*tools.InMemoryToolRegistry, error) {
	reg := tools.NewInMemoryToolRegistry()
	if err := menu.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewSession builds the provider and a session publishing to sinks. The
// returned function releases the provider.
func (h *HostAgent) NewSession(sinks ...events.EventSink) (*session.Session, func() error, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, nil, err
	}

	offered, err := tools.Filter(reg.Specs(), h.Settings.Loop.AllowedTools)
	if err != nil {
		return nil, nil, err
	}
	instructions, err := h.Settings.Agent.RenderInstructions(offered)
	if err != nil {
		return nil, nil, err
	}

	factory := &ai.StandardProviderFactory{Settings: h.Settings, DefaultScript: menu.Script}
	provider, closeProvider, err := factory.NewProvider()
	if err != nil {
		return nil, nil, err
	}
	counter, err := tokens.NewCounter(h.Settings.Chat.Model)
	if err != nil {
		_ = closeProvider()
		return nil, nil, err
	}
	provider = middleware.Chain(provider, middleware.NewLoggingMiddleware(log.Logger, counter))

	opts := []session.Option{
		session.WithEventSinks(sinks...),
		session.WithLoopOptions(
			toolloop.WithInstructions(instructions),
			toolloop.WithLoopConfig(h.Settings.LoopConfig()),
			toolloop.WithToolConfig(h.Settings.ToolConfig()),
		),
	}
	if h.Resume != "" {
		resumed, err := resumeOptions(h.Resume)
		if err != nil {
			_ = closeProvider()
			return nil, nil, err
		}
		opts = append(opts, resumed...)
	}

	sess, err := session.NewSession(reg, provider, opts...)
	if err != nil {
		_ = closeProvider()
		return nil, nil, err
	}
	log.Debug().
		Str("session_id", sess.SessionID).
		Str("provider", string(h.Settings.Chat.Provider)).
		Str("model", h.Settings.Chat.Model).
		Strs("tools", reg.Names()).
		Msg("cmds: host agent session ready")
	return sess, closeProvider, nil
}

func resumeOptions(path string) ([]session.Option, error) {
	doc, err := serde.LoadTranscriptYAML(path)
	if err != nil {
		return nil, err
	}
	tr, err := serde.Replay(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resume %s", path)
	}
	log.Debug().Str("path", path).Int("turns", tr.Len()).Msg("cmds: resuming transcript")
	opts := []session.Option{session.WithTranscript(tr)}
	if doc.SessionID != "" {
		opts = append(opts, session.WithSessionID(doc.SessionID))
	}
	return opts, nil
}

// Run executes conv against a fresh session, printing events to w.
func (h *HostAgent) Run(ctx context.Context, w io.Writer, conv Conversation) error {
	routerOptions := []events.EventRouterOption{}
	if h.Verbose {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return errors.Wrap(err, "could not create event router")
	}
	defer func() {
		_ = router.Close()
	}()
	router.AddHandler("printer", eventTopic, events.TurnPrinterFunc(w, h.Printer))
	if h.RawEvents != nil {
		router.AddHandler("raw", eventTopic, router.DumpRawEvents(h.RawEvents))
	}

	sinks := []events.EventSink{inference.NewWatermillSink(router.Publisher, eventTopic)}
	if h.EventsFile != "" {
		f, err := os.Create(h.EventsFile)
		if err != nil {
			return errors.Wrapf(err, "could not create events file %s", h.EventsFile)
		}
		defer func() {
			_ = f.Close()
		}()
		sinks = append(sinks, fixtures.NewNDJSONSink(f))
	}

	sess, closeProvider, err := h.NewSession(sinks...)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeProvider(); err != nil {
			log.Warn().Err(err).Msg("cmds: could not close provider")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mode := h.Settings.Chat.Mode()
	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return conv(ctx, func(ctx context.Context, input string) error {
			_, err := sess.RunTurn(ctx, input, mode)
			return err
		})
	})
	runErr := eg.Wait()

	doc := serde.Document{
		SessionID: sess.SessionID,
		Agent:     h.Settings.Agent.Name,
		Turns:     sess.Transcript(),
	}
	if err := h.save(doc); err != nil {
		if runErr != nil {
			log.Error().Err(err).Msg("cmds: could not save transcript")
			return runErr
		}
		return err
	}
	return runErr
}

func (h *HostAgent) save(doc serde.Document) error {
	if h.SaveTranscript != "" {
		if err := serde.SaveTranscriptYAML(h.SaveTranscript, doc); err != nil {
			return err
		}
		log.Info().Str("path", h.SaveTranscript).Int("turns", len(doc.Turns)).Msg("cmds: transcript saved")
	}
	if h.Store != "" {
		st, err := store.Open(h.Store)
		if err != nil {
			return err
		}
		defer func() {
			_ = st.Close()
		}()
		// the run context may already be cancelled here
		if err := st.Save(context.Background(), doc); err != nil {
			return err
		}
		log.Info().Str("store", h.Store).Str("session_id", doc.SessionID).Msg("cmds: transcript stored")
	}
	return nil
}
