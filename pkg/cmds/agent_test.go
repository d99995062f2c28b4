package cmds

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/menu"
	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/go-go-golems/turnloop/pkg/turns/serde"
	"github.com/go-go-golems/turnloop/pkg/turns/store"
)

func scriptedSettings() *settings.Settings {
	s := settings.NewSettings()
	s.Chat.Provider = settings.ProviderScripted
	return s
}

func TestRunDefaultInputs(t *testing.T) {
	dir := t.TempDir()
	h := &HostAgent{
		Settings:       scriptedSettings(),
		Printer:        events.PrinterOptions{ShowToolCalls: true},
		EventsFile:     filepath.Join(dir, "events.ndjson"),
		SaveTranscript: filepath.Join(dir, "transcript.yaml"),
		Store:          filepath.Join(dir, "sessions.db"),
	}

	var out bytes.Buffer
	require.NoError(t, h.Run(context.Background(), &out, Inputs(menu.DefaultInputs...)))

	printed := out.String()
	assert.Contains(t, printed, "# user: 'What are your specials?'")
	assert.Contains(t, printed, "# tool - get_item_price: '$9.99'")
	assert.Contains(t, printed, "# assistant - Host: 'The t-bone steak costs $9.99.'")
	assert.Contains(t, printed, "# assistant - Host: 'The special drink is Chai Tea.'")
	assert.Contains(t, printed, "# assistant - Host: 'You're welcome! Enjoy your meal.'")

	doc, err := serde.LoadTranscriptYAML(h.SaveTranscript)
	require.NoError(t, err)
	assert.Equal(t, "Host", doc.Agent)
	require.Len(t, doc.Turns, 14)
	assert.Equal(t, turns.RoleUser, doc.Turns[0].Role)
	assert.Equal(t, "You're welcome! Enjoy your meal.", doc.Turns[13].Content)

	st, err := store.Open(h.Store)
	require.NoError(t, err)
	defer st.Close()
	stored, err := st.Load(context.Background(), doc.SessionID)
	require.NoError(t, err)
	assert.Equal(t, doc.Turns, stored.Turns)

	f, err := os.Open(h.EventsFile)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Greater(t, lines, 14)
}

func TestRunResumesSavedTranscript(t *testing.T) {
	dir := t.TempDir()
	first := &HostAgent{
		Settings:       scriptedSettings(),
		SaveTranscript: filepath.Join(dir, "first.yaml"),
	}
	var out bytes.Buffer
	require.NoError(t, first.Run(context.Background(), &out, Inputs("How much is Clam Chowder soup?")))
	saved, err := serde.LoadTranscriptYAML(first.SaveTranscript)
	require.NoError(t, err)
	require.Len(t, saved.Turns, 3)

	var raw bytes.Buffer
	second := &HostAgent{
		Settings:       scriptedSettings(),
		Resume:         first.SaveTranscript,
		SaveTranscript: filepath.Join(dir, "second.yaml"),
		RawEvents:      &raw,
	}
	out.Reset()
	require.NoError(t, second.Run(context.Background(), &out, Inputs("Thank you")))

	resumed, err := serde.LoadTranscriptYAML(second.SaveTranscript)
	require.NoError(t, err)
	assert.Equal(t, saved.SessionID, resumed.SessionID)
	require.Len(t, resumed.Turns, 5)
	assert.Equal(t, saved.Turns[2].Content, resumed.Turns[2].Content)
	assert.Equal(t, "You're welcome! Enjoy your meal.", resumed.Turns[4].Content)
	assert.Contains(t, raw.String(), "\"type\"")
}

func TestRunStreamingPrintsDeltas(t *testing.T) {
	s := scriptedSettings()
	s.Chat.Stream = true
	h := &HostAgent{Settings: s, Printer: events.PrinterOptions{ShowDeltas: true}}

	var out bytes.Buffer
	require.NoError(t, h.Run(context.Background(), &out, Inputs("What is the special drink?")))
	assert.Contains(t, out.String(), "The special drink is Chai Tea.\n")
}

func TestRunFailsOnToolOutsideAllowList(t *testing.T) {
	s := scriptedSettings()
	s.Loop.AllowedTools = []string{"get_specials"}
	h := &HostAgent{Settings: s}

	var out bytes.Buffer
	err := h.Run(context.Background(), &out, Inputs("How much is the t-bone steak?"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_item_price")
}

type fakePrompter struct {
	answers []string
	asked   []string
}

func (p *fakePrompter) Ask(query string, _ *input.Options) (string, error) {
	p.asked = append(p.asked, query)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestInteractive(t *testing.T) {
	p := &fakePrompter{answers: []string{"What are your specials?", "Thank you", "quit", "never asked"}}
	var inputs []string
	err := Interactive(p)(context.Background(), func(ctx context.Context, in string) error {
		inputs = append(inputs, in)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"What are your specials?", "Thank you"}, inputs)
	assert.Len(t, p.asked, 3)
}

func TestInteractiveEndsAtEOF(t *testing.T) {
	p := &fakePrompter{answers: []string{"hello"}}
	n := 0
	err := Interactive(p)(context.Background(), func(ctx context.Context, in string) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAskYesNo(t *testing.T) {
	ok, err := AskYesNo(&fakePrompter{answers: []string{"n"}}, "Continue?")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AskYesNo(&fakePrompter{answers: []string{"Y"}}, "Continue?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminalPrompterReadsLineByLine(t *testing.T) {
	var echo bytes.Buffer
	p := NewPrompter(strings.NewReader("What are your specials?\n\nThank you\nlast line"), &echo)
	var inputs []string
	err := Interactive(p)(context.Background(), func(ctx context.Context, in string) error {
		inputs = append(inputs, in)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"What are your specials?", "Thank you", "last line"}, inputs)
}

func TestIsExit(t *testing.T) {
	for _, s := range []string{"exit", " QUIT ", "/exit"} {
		assert.True(t, isExit(s), s)
	}
	assert.False(t, isExit("exit please"))
}
