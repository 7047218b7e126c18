package conversation

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	upload *client.Upload
	prompt string
	agent  client.AgentKind
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []call
	res   *client.AnalysisResult
	err   error
}

func (f *fakeBackend) Analyze(_ context.Context, upload *client.Upload, prompt string, agent client.AgentKind) (*client.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{upload, prompt, agent})
	return f.res, f.err
}

func str(s string) *string { return &s }

func mustUpload(t *testing.T, name string) *client.Upload {
	t.Helper()
	u, err := client.NewUploadBytes(name, []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	return u
}

func TestSendSelectsVariantAndConsumesUpload(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{Response: "ok"}}
	c := New(nil)

	_, err := c.Send(context.Background(), b, "first", client.AgentAuto)
	require.NoError(t, err)

	u := mustUpload(t, "sales.csv")
	c.Stage(u)
	_, err = c.Send(context.Background(), b, "second", client.AgentPDF)
	require.NoError(t, err)

	require.Len(t, b.calls, 2)
	assert.Nil(t, b.calls[0].upload, "no staged file uses the no-file variant")
	assert.Same(t, u, b.calls[1].upload)
	assert.Equal(t, client.AgentPDF, b.calls[1].agent)
	assert.Nil(t, c.Snapshot().Pending)
}

func TestBeginClearsUploadBeforeResponse(t *testing.T) {
	c := New(nil)
	c.Stage(mustUpload(t, "a.csv"))

	req, err := c.Begin("analyze this", client.AgentAuto)
	require.NoError(t, err)
	require.NotNil(t, req.Upload)

	snap := c.Snapshot()
	assert.Nil(t, snap.Pending, "upload is consumed while still sending")
	assert.True(t, snap.Busy())
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "a.csv", snap.Messages[0].Attachment)
}

func TestBeginRejections(t *testing.T) {
	c := New(nil)

	_, err := c.Begin("   ", client.AgentAuto)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Empty(t, c.Snapshot().Messages)

	_, err = c.Begin("one", client.AgentAuto)
	require.NoError(t, err)

	c.Stage(mustUpload(t, "b.csv"))
	_, err = c.Begin("two", client.AgentAuto)
	assert.ErrorIs(t, err, ErrBusy)

	snap := c.Snapshot()
	assert.Len(t, snap.Messages, 1, "busy send is inert")
	assert.NotNil(t, snap.Pending, "staging works while busy")
}

func TestFailureAppendsOneErrorMessage(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{
		Response: "report ready",
		PDFPath:  str("http://x/download/r.pdf"),
	}}
	c := New(nil)
	_, err := c.Send(context.Background(), b, "pdf please", client.AgentAuto)
	require.NoError(t, err)

	b.res, b.err = nil, client.ErrRequestFailed
	msg, err := c.Send(context.Background(), b, "again", client.AgentAuto)
	assert.ErrorIs(t, err, client.ErrRequestFailed)
	assert.True(t, msg.IsError)

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 4)
	last := snap.Messages[3]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Error: "), last.Content)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "http://x/download/r.pdf", snap.Artifacts.PDF, "failure leaves artifacts alone")

	// a failed state still accepts input
	b.res, b.err = &client.AnalysisResult{Response: "fine"}, nil
	_, err = c.Send(context.Background(), b, "third", client.AgentAuto)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.Snapshot().State)
}

func TestArtifactsUpdateIndependently(t *testing.T) {
	b := &fakeBackend{}
	c := New(nil)
	ctx := context.Background()

	b.res = &client.AnalysisResult{Response: "pdf", PDFPath: str("p1")}
	_, err := c.Send(ctx, b, "a", client.AgentAuto)
	require.NoError(t, err)

	b.res = &client.AnalysisResult{Response: "deck", PPTPath: str("d1")}
	_, err = c.Send(ctx, b, "b", client.AgentAuto)
	require.NoError(t, err)

	b.res = &client.AnalysisResult{Response: "dash", DashboardPath: str("x1"), PDFPath: str("")}
	msg, err := c.Send(ctx, b, "c", client.AgentAuto)
	require.NoError(t, err)
	assert.Equal(t, "x1", msg.DashboardPath)

	assert.Equal(t, Artifacts{PDF: "p1", Deck: "d1", Dashboard: "x1"}, c.Snapshot().Artifacts)
}

func TestReset(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{Response: "r", PPTPath: str("d")}}
	c := New(nil)
	_, err := c.Send(context.Background(), b, "a", client.AgentAuto)
	require.NoError(t, err)
	c.Stage(mustUpload(t, "a.csv"))

	c.Reset()

	snap := c.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Nil(t, snap.Pending)
	assert.Equal(t, Artifacts{}, snap.Artifacts)
	assert.Equal(t, StateIdle, snap.State)
}

func TestResetIsAtomic(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{Response: "r", PDFPath: str("p"), PPTPath: str("d")}}
	c := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := c.Snapshot()
			// artifacts and history are either both present or both cleared
			if len(snap.Messages) == 0 {
				assert.Equal(t, Artifacts{}, snap.Artifacts)
			}
		}
	}()

	for range 100 {
		_, _ = c.Send(ctx, b, "x", client.AgentAuto)
		c.Reset()
	}
	close(stop)
	wg.Wait()
}

func TestCompleteWithoutRequestIsIgnored(t *testing.T) {
	c := New(nil)
	_, ok := c.Complete(&client.AnalysisResult{Response: "stray"}, nil)
	assert.False(t, ok)
	assert.Empty(t, c.Snapshot().Messages)
}

func TestMessageOrderFollowsAppendOrder(t *testing.T) {
	c := New(nil)

	_, err := c.Begin("first", client.AgentAuto)
	require.NoError(t, err)
	c.Stage(mustUpload(t, "late.csv"))
	_, ok := c.Complete(&client.AnalysisResult{Response: "answer one"}, nil)
	require.True(t, ok)

	_, err = c.Begin("second", client.AgentAuto)
	require.NoError(t, err)
	_, ok = c.Complete(nil, errors.New("boom"))
	require.True(t, ok)

	var got []string
	for _, m := range c.Snapshot().Messages {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"first", "answer one", "second", "Error: boom"}, got)
}

func TestSnapshotIsACopy(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{Response: "r"}}
	c := New(nil)
	_, err := c.Send(context.Background(), b, "a", client.AgentAuto)
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Messages[0].Content = "changed"
	assert.Equal(t, "a", c.Snapshot().Messages[0].Content)
}

func TestWriteTranscript(t *testing.T) {
	b := &fakeBackend{res: &client.AnalysisResult{Response: "Here you go", PDFPath: str("http://x/download/r.pdf")}}
	c := New(nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.Stage(mustUpload(t, "sales.csv"))
	_, err := c.Send(context.Background(), b, "make a report", client.AgentAuto)
	require.NoError(t, err)
	assert.Equal(t, fixed, c.Snapshot().Messages[0].CreatedAt)

	var sb strings.Builder
	require.NoError(t, c.WriteTranscript(&sb))
	assert.Equal(t,
		"User: make a report\n  Attachment: sales.csv\n\n"+
			"Agent: Here you go\n  PDF: http://x/download/r.pdf\n\n",
		sb.String())
}

func TestSendAgainstStub(t *testing.T) {
	srv := httptest.NewServer(stub.New(nil).Handler())
	t.Cleanup(srv.Close)
	backend := client.New(srv.URL, 5*time.Second)
	c := New(nil)
	ctx := context.Background()

	// no data loaded yet: the backend refuses and the conversation continues
	_, err := c.Send(ctx, backend, "build a dashboard", client.AgentAuto)
	require.ErrorIs(t, err, client.ErrRequestFailed)

	c.Stage(mustUpload(t, "sales.csv"))
	_, err = c.Send(ctx, backend, "build a dashboard", client.AgentAuto)
	require.NoError(t, err)

	_, err = c.Send(ctx, backend, "now a pdf report", client.AgentAuto)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Len(t, snap.Messages, 6)
	assert.Contains(t, snap.Artifacts.Dashboard, "/download/dashboard_")
	assert.Contains(t, snap.Artifacts.PDF, "/download/report_")
	assert.Empty(t, snap.Artifacts.Deck)
}

func TestSendTextDeckWithoutUpload(t *testing.T) {
	srv := httptest.NewServer(stub.New(nil).Handler())
	t.Cleanup(srv.Close)
	backend := client.New(srv.URL, 5*time.Second)
	c := New(nil)

	prompt := "Create slides titled on: Onboarding\n" + strings.Repeat("Explain the first week for new hires. ", 3)
	msg, err := c.Send(context.Background(), backend, prompt, client.AgentAuto)
	require.NoError(t, err)

	assert.Contains(t, msg.Content, "titled 'Onboarding'")
	assert.Contains(t, msg.PPTPath, "/download/presentation_1.pptx")
	snap := c.Snapshot()
	assert.Equal(t, msg.PPTPath, snap.Artifacts.Deck)
	assert.Empty(t, snap.Artifacts.PDF)
	assert.Len(t, snap.Messages, 2)
}
