package artifact_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/artifact"
	"github.com/JakeFAU/patent-collector/internal/fetcher/download"
	"github.com/JakeFAU/patent-collector/internal/logsink"
	"github.com/JakeFAU/patent-collector/internal/patent"
	"github.com/JakeFAU/patent-collector/internal/storage/memory"
)

const pageTemplate = `<html><head>
<meta itemprop="full" content="%[1]s/figs/US1-1.png">
<meta itemprop="full" content="%[1]s/figs/US1-2.jpg">
</head><body>
<h1>US1 - Widget</h1>
<a href="/pdf/US1.pdf">Download PDF</a>
<section itemprop="abstract"><h2>Abstract</h2><div>A  widget
 that works.</div></section>
<section itemprop="description"><p>Intro</p>
<img src="/desc/a.png" srcset="/desc/a-2x.png 2x">
<img alt="no source">
<img src="%[1]s/desc/b.jpeg">
</section>
</body></html>`

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fileServer struct {
	srv  *httptest.Server
	hits atomic.Int32
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()
	fs := &fileServer{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if strings.HasPrefix(r.URL.Path, "/broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "bytes of "+r.URL.Path)
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func newStore(t *testing.T, base, siteRoot string, mirror artifact.Mirror) (*artifact.Store, *logsink.Buffer) {
	t.Helper()
	journal := logsink.New(logsink.DefaultCapacity, zap.NewNop())
	store := artifact.New(
		artifact.Config{BaseDir: base, SiteRoot: siteRoot, MirrorPrefix: "mirror"},
		download.New(download.Config{Timeout: 5 * time.Second}),
		&steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		journal,
		mirror,
		zap.NewNop(),
	)
	return store, journal
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func TestPersistWritesArtifactSet(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	store, _ := newStore(t, base, files.srv.URL, nil)
	doc := parse(t, fmt.Sprintf(pageTemplate, files.srv.URL))

	rec := patent.Record{Title: "US1 - Widget", URL: "https://patents.google.com/patent/US1/en"}
	res, err := store.Persist(context.Background(), "US1", rec, doc)
	require.NoError(t, err)
	require.Empty(t, res.Failed)

	dir := filepath.Join(base, "US1_data")
	require.Equal(t, dir, res.Dir)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, artifact.MetadataFile))), &meta))
	assert.Equal(t, "US1", meta["patent_id"])
	assert.Equal(t, "US1 - Widget", meta["title"])
	assert.Contains(t, meta, "last_updated")

	assert.Equal(t,
		"URL: https://patents.google.com/patent/US1/en\n\nA widget that works.",
		readFile(t, filepath.Join(dir, artifact.AbstractFile)),
	)
	assert.Equal(t, "bytes of /pdf/US1.pdf", readFile(t, filepath.Join(dir, "US1.pdf")))
	assert.Equal(t, "bytes of /figs/US1-1.png", readFile(t, filepath.Join(dir, "figure_1.png")))
	assert.Equal(t, "bytes of /figs/US1-2.jpg", readFile(t, filepath.Join(dir, "figure_2.jpg")))
	assert.Equal(t, "bytes of /desc/a.png", readFile(t, filepath.Join(dir, "description_images", "desc_img_0.png")))
	assert.Equal(t, "bytes of /desc/b.jpeg", readFile(t, filepath.Join(dir, "description_images", "desc_img_2.jpg")))

	desc := readFile(t, filepath.Join(dir, artifact.DescriptionFile))
	assert.True(t, strings.HasPrefix(desc, "<html><head><meta charset='utf-8'></head><body><h1>US1</h1><section"))
	assert.Contains(t, desc, `src="./description_images/desc_img_0.png"`)
	assert.Contains(t, desc, `src="./description_images/desc_img_2.jpg"`)
	assert.NotContains(t, desc, "srcset")

	// The caller's document is not rewritten.
	src, _ := doc.Find(`section[itemprop="description"] img`).First().Attr("src")
	assert.Equal(t, "/desc/a.png", src)

	assert.Equal(t, int32(5), files.hits.Load())

	for _, name := range []string{
		artifact.MetadataFile,
		artifact.AbstractFile,
		artifact.DescriptionFile,
		"US1.pdf",
		"figure_1.png",
		filepath.Join(artifact.DescriptionDir, "desc_img_0.png"),
	} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), name)
	}
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestPersistIsIdempotent(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	store, _ := newStore(t, base, files.srv.URL, nil)
	page := fmt.Sprintf(pageTemplate, files.srv.URL)
	rec := patent.Record{Title: "T", URL: "u"}

	first, err := store.Persist(context.Background(), "US1", rec, parse(t, page))
	require.NoError(t, err)
	hitsAfterFirst := files.hits.Load()

	dir := filepath.Join(base, "US1_data")
	pdfBefore, err := os.Stat(filepath.Join(dir, "US1.pdf"))
	require.NoError(t, err)
	descBefore := readFile(t, filepath.Join(dir, artifact.DescriptionFile))

	second, err := store.Persist(context.Background(), "US1", rec, parse(t, page))
	require.NoError(t, err)

	require.Equal(t, hitsAfterFirst, files.hits.Load(), "second run must not download anything")
	require.Equal(t, []string{artifact.MetadataFile}, second.Written)
	require.True(t, second.Record.LastUpdated.After(first.Record.LastUpdated))

	pdfAfter, err := os.Stat(filepath.Join(dir, "US1.pdf"))
	require.NoError(t, err)
	require.Equal(t, pdfBefore.ModTime(), pdfAfter.ModTime())
	require.Equal(t, descBefore, readFile(t, filepath.Join(dir, artifact.DescriptionFile)))
}

func TestPersistMissingSectionsUseDefaults(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, _ := newStore(t, base, "https://patents.invalid", nil)

	res, err := store.Persist(context.Background(), "US2", patent.Record{URL: "u2"}, parse(t, "<html><body></body></html>"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{artifact.MetadataFile, artifact.AbstractFile}, res.Written)

	dir := filepath.Join(base, "US2_data")
	require.Equal(t, "URL: u2\n\nN/A", readFile(t, filepath.Join(dir, artifact.AbstractFile)))
	require.NoFileExists(t, filepath.Join(dir, "US2.pdf"))
	require.NoFileExists(t, filepath.Join(dir, artifact.DescriptionFile))
}

func TestPersistDownloadFailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	store, journal := newStore(t, base, files.srv.URL, nil)
	page := `<html><head>
<meta itemprop="full" content="` + files.srv.URL + `/figs/ok.png">
</head><body><a href="/broken/US3.pdf">pdf</a></body></html>`

	res, err := store.Persist(context.Background(), "US3", patent.Record{}, parse(t, page))
	require.NoError(t, err)
	require.Equal(t, []string{"US3.pdf"}, res.Failed)
	require.FileExists(t, filepath.Join(base, "US3_data", "figure_1.png"))
	require.NoFileExists(t, filepath.Join(base, "US3_data", "US3.pdf"))

	lines := strings.Join(journal.Lines(), "\n")
	require.Contains(t, lines, "   [Download] PDF...")
	require.Contains(t, lines, "   [Error] Download failed "+files.srv.URL+"/broken/US3.pdf")
}

func TestPersistExistingDescriptionImageIsLocalizedWithoutDownload(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	store, journal := newStore(t, base, files.srv.URL, nil)

	imgDir := filepath.Join(base, "US4_data", artifact.DescriptionDir)
	require.NoError(t, os.MkdirAll(imgDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "desc_img_0.png"), []byte("cached"), 0o600))

	page := `<html><body><section itemprop="description"><img src="/desc/a.png"></section></body></html>`
	_, err := store.Persist(context.Background(), "US4", patent.Record{}, parse(t, page))
	require.NoError(t, err)

	require.Zero(t, files.hits.Load())
	require.Contains(t, journal.Lines(), "   [Skip] File exists: desc_img_0.png")
	require.Contains(t, readFile(t, filepath.Join(base, "US4_data", artifact.DescriptionFile)),
		`src="./description_images/desc_img_0.png"`)
}

func TestPersistCanceledContextWritesNothing(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	store, _ := newStore(t, base, files.srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := store.Persist(ctx, "US5", patent.Record{}, parse(t, fmt.Sprintf(pageTemplate, files.srv.URL)))
	require.ErrorIs(t, err, patent.ErrSkipped)
	require.Empty(t, res.Written)
	require.Zero(t, files.hits.Load())
	require.DirExists(t, filepath.Join(base, "US5_data"))
	require.NoFileExists(t, filepath.Join(base, "US5_data", artifact.MetadataFile))

	items, err := store.List(func(id string) bool { return id == "US5" })
	require.NoError(t, err)
	require.Equal(t, []patent.Listing{
		{ID: "US5", Status: patent.RecordSkipped, Title: "N/A", PatentStatus: "Unknown"},
	}, items)
}

// cancelingMirror cancels the run once a given file has been mirrored.
type cancelingMirror struct {
	object string
	cancel context.CancelFunc
}

func (m cancelingMirror) PutObject(_ context.Context, p, _ string, _ io.Reader) (string, error) {
	if p == m.object {
		m.cancel()
	}
	return p, nil
}

func TestPersistCancelAfterLastArtifactIsSuccess(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, _ := newStore(t, base, files.srv.URL, cancelingMirror{
		object: "mirror/US6_data/figure_2.jpg",
		cancel: cancel,
	})

	res, err := store.Persist(ctx, "US6", patent.Record{}, parse(t, fmt.Sprintf(pageTemplate, files.srv.URL)))
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.Contains(t, res.Written, "figure_2.jpg")
	require.FileExists(t, filepath.Join(base, "US6_data", artifact.DescriptionFile))
}

func TestPersistCancelDuringFiguresIsSkip(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	base := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, _ := newStore(t, base, files.srv.URL, cancelingMirror{
		object: "mirror/US7_data/figure_1.png",
		cancel: cancel,
	})

	res, err := store.Persist(ctx, "US7", patent.Record{}, parse(t, fmt.Sprintf(pageTemplate, files.srv.URL)))
	require.ErrorIs(t, err, patent.ErrSkipped)
	require.Contains(t, res.Written, "figure_1.png")
	require.NoFileExists(t, filepath.Join(base, "US7_data", "figure_2.jpg"))
}

func TestPersistMetadataFailureIsPersistenceError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	store, _ := newStore(t, blocker, "", nil)
	_, err := store.Persist(context.Background(), "US6", patent.Record{}, parse(t, "<html></html>"))
	require.ErrorIs(t, err, patent.ErrPersistence)
}

type failingMirror struct{}

func (failingMirror) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func TestPersistMirrorsWrittenFiles(t *testing.T) {
	t.Parallel()

	files := newFileServer(t)
	mirror := memory.NewBlobStore()
	store, _ := newStore(t, t.TempDir(), files.srv.URL, mirror)

	page := `<html><body><a href="/pdf/US7.pdf">pdf</a></body></html>`
	_, err := store.Persist(context.Background(), "US7", patent.Record{}, parse(t, page))
	require.NoError(t, err)

	require.Equal(t, []string{
		"mirror/US7_data/US7.pdf",
		"mirror/US7_data/abstract.txt",
		"mirror/US7_data/metadata.json",
	}, mirror.Paths())
	pdf, contentType, ok := mirror.Object("mirror/US7_data/US7.pdf")
	require.True(t, ok)
	require.Equal(t, "bytes of /pdf/US7.pdf", string(pdf))
	require.Equal(t, "application/pdf", contentType)
}

func TestPersistMirrorFailureIsIgnored(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, t.TempDir(), "", failingMirror{})

	_, err := store.Persist(context.Background(), "US8", patent.Record{}, parse(t, "<html></html>"))
	require.NoError(t, err)
}
