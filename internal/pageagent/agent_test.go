package pageagent

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PerplexityAssistant/internal/messaging"
)

type sent struct {
	to  string
	req messaging.Request
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingSender) Send(ctx context.Context, to string, req messaging.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to, req})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseAgent(t *testing.T, page string) (*Agent, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	a, err := Parse(strings.NewReader(page), "https://e.com/article", sender, testLogger())
	require.NoError(t, err)
	return a, sender
}

const articlePage = `<!DOCTYPE html>
<html>
<head><title>  Example
   Page </title><style>body { color: red; }</style></head>
<body>
  <header>Site header</header>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <script>var tracking = "do not include";</script>
  <p>First   paragraph
     of text.</p>
  <style>.hidden { display: none; }</style>
  <div>Second<span> paragraph</span></div>
  <aside>Related links</aside>
  <p style="display:none">Hidden but kept</p>
  <footer>Copyright</footer>
</body>
</html>`

func TestSnapshot_ExcludesStructuralTags(t *testing.T) {
	a, _ := parseAgent(t, articlePage)

	snap := a.Snapshot()
	assert.Equal(t, "Example Page", snap.Title)
	assert.Equal(t, "https://e.com/article", snap.URL)
	assert.Equal(t, "First paragraph of text. Second paragraph Hidden but kept", snap.Text)

	for _, excluded := range []string{"Site header", "Home", "tracking", "color", ".hidden", "Related", "Copyright"} {
		assert.NotContains(t, snap.Text, excluded)
	}
}

func TestSnapshot_BlockBoundariesSeparateWords(t *testing.T) {
	a, _ := parseAgent(t, `<body><p>one</p><p>two</p><ul><li>three</li><li>four</li></ul>five<br>six</body>`)
	assert.Equal(t, "one two three four five six", a.Snapshot().Text)
}

func TestSnapshot_TruncatesText(t *testing.T) {
	long := strings.Repeat("ab ", 4000)
	a, _ := parseAgent(t, "<body><p>"+long+"</p></body>")

	text := a.Snapshot().Text
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(text))
	assert.True(t, strings.HasPrefix(text, "ab ab ab"))
}

func TestSnapshot_TruncatesByCharacter(t *testing.T) {
	long := strings.Repeat("é", MaxTextLength+10)
	a, _ := parseAgent(t, "<body>"+long+"</body>")

	text := a.Snapshot().Text
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(text))
	assert.True(t, utf8.ValidString(text))
}

func TestSnapshot_SelectionIsVerbatim(t *testing.T) {
	a, _ := parseAgent(t, "<body><p>text</p></body>")

	selection := "  spaced   selection\n" + strings.Repeat("x", MaxTextLength*2)
	a.Select(selection)
	assert.Equal(t, selection, a.Snapshot().SelectedText)
}

func TestSnapshot_DoesNotMutateDocument(t *testing.T) {
	a, _ := parseAgent(t, articlePage)

	var before bytes.Buffer
	require.NoError(t, a.Render(&before))
	a.Snapshot()
	var after bytes.Buffer
	require.NoError(t, a.Render(&after))

	assert.Equal(t, before.String(), after.String())
	assert.Contains(t, after.String(), "tracking")
}

func TestHandleMessage(t *testing.T) {
	a, _ := parseAgent(t, articlePage)

	result, err := a.HandleMessage(context.Background(), messaging.Request{Action: messaging.ActionGetPageContent})
	require.NoError(t, err)
	snap, ok := result.(Snapshot)
	require.True(t, ok)
	assert.Equal(t, "Example Page", snap.Title)

	result, err = a.HandleMessage(context.Background(), messaging.Request{Action: "somethingElse"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestOnLoad_InsertsLauncherOnce(t *testing.T) {
	a, _ := parseAgent(t, "<body><p>content</p></body>")

	a.OnLoad()
	a.OnLoad()

	var out bytes.Buffer
	require.NoError(t, a.Render(&out))
	assert.Equal(t, 1, strings.Count(out.String(), `id="`+LauncherID+`"`))
	assert.Contains(t, out.String(), "position: fixed")
}

func TestClickLauncher_SendsOpenPopup(t *testing.T) {
	a, sender := parseAgent(t, "<body></body>")

	require.Error(t, a.ClickLauncher(context.Background()))
	assert.Empty(t, sender.sent)

	a.OnLoad()
	require.NoError(t, a.ClickLauncher(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, messaging.Background, sender.sent[0].to)
	assert.Equal(t, messaging.ActionOpenPopup, sender.sent[0].req.Action)
}

func TestLoad_Sources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<title>Served</title><p>over http</p>"))
	}))
	defer server.Close()

	a, err := Load(context.Background(), server.URL, &recordingSender{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "Served", a.Snapshot().Title)
	assert.Equal(t, "over http", a.Snapshot().Text)

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<title>File</title><p>on disk</p>"), 0o600))
	a, err = Load(context.Background(), path, &recordingSender{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "File", a.Snapshot().Title)
	assert.Equal(t, "file://"+path, a.URL())

	a, err = Load(context.Background(), "", &recordingSender{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "about:blank", a.URL())
	assert.Empty(t, a.Snapshot().Text)
}

func TestLoad_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := Load(context.Background(), server.URL, &recordingSender{}, testLogger())
	assert.Error(t, err)
}
