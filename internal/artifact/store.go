package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/extract"
	"github.com/JakeFAU/patent-collector/internal/metrics"
	"github.com/JakeFAU/patent-collector/internal/patent"
)

// File and directory names inside an identifier directory.
const (
	DirSuffix        = "_data"
	MetadataFile     = "metadata.json"
	AbstractFile     = "abstract.txt"
	DescriptionFile  = "description.html"
	DescriptionDir   = "description_images"
	descriptionImage = "desc_img_"
	figurePrefix     = "figure_"
)

// Download kinds reported to metrics.
const (
	KindPDF         = "pdf"
	KindDescription = "description_image"
	KindFigure      = "figure"
)

// Journal receives operator-facing progress lines.
type Journal interface {
	Printf(format string, args ...any)
}

// Mirror receives a copy of every file written locally.
type Mirror interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Config controls where artifacts are written.
type Config struct {
	BaseDir      string
	SiteRoot     string
	MirrorPrefix string
}

// Result describes what one Persist call did. Paths are relative to the
// identifier directory.
type Result struct {
	Dir      string
	Record   patent.Record
	Written  []string
	Existing []string
	Failed   []string

	// interrupted is set when cancellation cut a step short.
	interrupted bool
}

// Store writes artifact sets below a base directory.
type Store struct {
	cfg        Config
	downloader patent.Downloader
	clock      patent.Clock
	journal    Journal
	mirror     Mirror
	logger     *zap.Logger
}

// New builds a Store. mirror may be nil.
func New(
	cfg Config,
	downloader patent.Downloader,
	clock patent.Clock,
	journal Journal,
	mirror Mirror,
	logger *zap.Logger,
) *Store {
	if cfg.SiteRoot == "" {
		cfg.SiteRoot = patent.DefaultSiteRoot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:        cfg,
		downloader: downloader,
		clock:      clock,
		journal:    journal,
		mirror:     mirror,
		logger:     logger,
	}
}

// Dir returns the directory that holds id's artifacts.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.cfg.BaseDir, id+DirSuffix)
}

// Prepare creates the identifier directory. A directory without metadata is
// listed as Pending.
func (s *Store) Prepare(id string) (string, error) {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", patent.ErrPersistence, dir, err)
	}
	return dir, nil
}

// Persist writes the artifact set for rec. The metadata document is always
// rewritten with a fresh LastUpdated; a failure there returns
// patent.ErrPersistence. Later artifacts are written only when absent and
// their failures are recorded in Result.Failed. ctx is checked before the
// metadata write and between artifacts; a cancel that cuts the run short
// returns patent.ErrSkipped.
func (s *Store) Persist(ctx context.Context, id string, rec patent.Record, doc *goquery.Document) (Result, error) {
	dir, err := s.Prepare(id)
	if err != nil {
		return Result{}, err
	}
	res := Result{Dir: dir}
	if err := checkpoint(ctx); err != nil {
		return res, err
	}

	rec.ID = id
	rec.LastUpdated = s.clock.Now().UTC()
	if err := s.writeMetadata(dir, rec); err != nil {
		return res, err
	}
	res.Record = rec
	res.Written = append(res.Written, MetadataFile)
	s.mirrorFile(ctx, id, MetadataFile)

	steps := []func(context.Context, string, *goquery.Document, *Result){
		s.persistAbstract,
		s.persistPDF,
		s.persistDescription,
		s.persistFigures,
	}
	for _, step := range steps {
		if err := checkpoint(ctx); err != nil {
			return res, err
		}
		step(ctx, id, doc, &res)
	}
	// A cancel that lands after the last step finished is not a skip.
	if res.interrupted {
		return res, checkpoint(ctx)
	}
	return res, nil
}

func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", patent.ErrSkipped, err)
	}
	return nil
}

func (s *Store) writeMetadata(dir string, rec patent.Record) error {
	payload, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %w", patent.ErrPersistence, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, MetadataFile), payload); err != nil {
		return fmt.Errorf("%w: %w", patent.ErrPersistence, err)
	}
	return nil
}

func (s *Store) persistAbstract(ctx context.Context, id string, doc *goquery.Document, res *Result) {
	dest := filepath.Join(res.Dir, AbstractFile)
	if exists(dest) {
		res.Existing = append(res.Existing, AbstractFile)
		return
	}
	content := fmt.Sprintf("URL: %s\n\n%s", res.Record.URL, abstractText(doc))
	if err := writeFileAtomic(dest, []byte(content)); err != nil {
		s.journal.Printf("   [Error] Write failed %s: %v", AbstractFile, err)
		res.Failed = append(res.Failed, AbstractFile)
		return
	}
	res.Written = append(res.Written, AbstractFile)
	s.mirrorFile(ctx, id, AbstractFile)
}

func abstractText(doc *goquery.Document) string {
	section := doc.Find(`section[itemprop="abstract"]`).First()
	if section.Length() == 0 {
		return patent.DefaultAbstract
	}
	text := extract.NormalizeText(section.Text())
	if len(text) >= len("abstract") && strings.EqualFold(text[:len("abstract")], "abstract") {
		text = strings.TrimSpace(text[len("abstract"):])
	}
	return text
}

func (s *Store) persistPDF(ctx context.Context, id string, doc *goquery.Document, res *Result) {
	name := id + ".pdf"
	if exists(filepath.Join(res.Dir, name)) {
		res.Existing = append(res.Existing, name)
		return
	}
	href, ok := doc.Find(`a[href$=".pdf"]`).First().Attr("href")
	if !ok || href == "" {
		return
	}
	s.journal.Printf("   [Download] PDF...")
	s.fetch(ctx, id, KindPDF, href, name, res)
}

func (s *Store) persistDescription(ctx context.Context, id string, doc *goquery.Document, res *Result) {
	dest := filepath.Join(res.Dir, DescriptionFile)
	if exists(dest) {
		res.Existing = append(res.Existing, DescriptionFile)
		return
	}
	found := doc.Find(`section[itemprop="description"]`).First()
	if found.Length() == 0 {
		return
	}
	// Work on a copy so the caller's document is left untouched.
	section := found.Clone()

	imgDir := filepath.Join(res.Dir, DescriptionDir)
	if err := os.MkdirAll(imgDir, dirMode); err != nil {
		s.journal.Printf("   [Error] Write failed %s: %v", DescriptionDir, err)
		res.Failed = append(res.Failed, DescriptionDir)
		return
	}

	section.Find("img").EachWithBreak(func(i int, img *goquery.Selection) bool {
		if ctx.Err() != nil {
			res.interrupted = true
			return false
		}
		src, _ := img.Attr("src")
		if src == "" {
			return true
		}
		imgURL := patent.AbsoluteURL(s.cfg.SiteRoot, src)
		ext := "png"
		if strings.Contains(imgURL, "jpg") || strings.Contains(imgURL, "jpeg") {
			ext = "jpg"
		}
		local := fmt.Sprintf("%s%d.%s", descriptionImage, i, ext)
		if s.fetch(ctx, id, KindDescription, imgURL, path.Join(DescriptionDir, local), res) {
			img.SetAttr("src", "./"+DescriptionDir+"/"+local)
			img.RemoveAttr("srcset")
		}
		return true
	})
	// A skip mid-way leaves description.html absent so the next run retries it.
	if res.interrupted {
		return
	}

	fragment, err := goquery.OuterHtml(section)
	if err != nil {
		s.journal.Printf("   [Error] Write failed %s: %v", DescriptionFile, err)
		res.Failed = append(res.Failed, DescriptionFile)
		return
	}
	content := fmt.Sprintf(
		"<html><head><meta charset='utf-8'></head><body><h1>%s</h1>%s</body></html>",
		id, fragment,
	)
	if err := writeFileAtomic(dest, []byte(content)); err != nil {
		s.journal.Printf("   [Error] Write failed %s: %v", DescriptionFile, err)
		res.Failed = append(res.Failed, DescriptionFile)
		return
	}
	res.Written = append(res.Written, DescriptionFile)
	s.mirrorFile(ctx, id, DescriptionFile)
}

func (s *Store) persistFigures(ctx context.Context, id string, doc *goquery.Document, res *Result) {
	doc.Find(`meta[itemprop="full"]`).EachWithBreak(func(i int, meta *goquery.Selection) bool {
		if ctx.Err() != nil {
			res.interrupted = true
			return false
		}
		content, _ := meta.Attr("content")
		if content == "" {
			return true
		}
		ext := "png"
		if strings.Contains(content, "jpg") {
			ext = "jpg"
		}
		name := fmt.Sprintf("%s%d.%s", figurePrefix, i+1, ext)
		if exists(filepath.Join(res.Dir, name)) {
			res.Existing = append(res.Existing, name)
			return true
		}
		s.fetch(ctx, id, KindFigure, content, name, res)
		return true
	})
}

// fetch downloads rawURL to name (relative to the identifier directory). An
// existing file counts as success and is never overwritten.
func (s *Store) fetch(ctx context.Context, id, kind, rawURL, name string, res *Result) bool {
	dest := filepath.Join(res.Dir, filepath.FromSlash(name))
	if exists(dest) {
		s.journal.Printf("   [Skip] File exists: %s", filepath.Base(dest))
		res.Existing = append(res.Existing, name)
		metrics.ObserveDownload(kind, metrics.DownloadExists)
		return true
	}
	target := patent.AbsoluteURL(s.cfg.SiteRoot, rawURL)
	n, err := s.downloader.Download(ctx, target, dest)
	if err != nil {
		if ctx.Err() != nil {
			res.interrupted = true
			metrics.ObserveDownload(kind, metrics.DownloadAborted)
			return false
		}
		s.journal.Printf("   [Error] Download failed %s: %v", target, err)
		res.Failed = append(res.Failed, name)
		metrics.ObserveDownload(kind, metrics.DownloadFailed)
		return false
	}
	s.logger.Debug("artifact downloaded",
		zap.String("patent_id", id),
		zap.String("kind", kind),
		zap.String("file", name),
		zap.Int64("bytes", n),
	)
	res.Written = append(res.Written, name)
	metrics.ObserveDownload(kind, metrics.DownloadOK)
	s.mirrorFile(ctx, id, name)
	return true
}

// mirrorFile copies a freshly written file to the mirror. Failures are logged
// only; the local tree is authoritative.
func (s *Store) mirrorFile(ctx context.Context, id, name string) {
	if s.mirror == nil {
		return
	}
	local := filepath.Join(s.Dir(id), filepath.FromSlash(name))
	// #nosec G304 -- path is built from the configured base directory.
	data, err := os.ReadFile(local)
	if err != nil {
		s.logger.Warn("mirror read failed", zap.String("file", local), zap.Error(err))
		return
	}
	object := path.Join(s.cfg.MirrorPrefix, id+DirSuffix, name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if _, err := s.mirror.PutObject(ctx, object, contentType, bytes.NewReader(data)); err != nil {
		s.logger.Warn("mirror upload failed", zap.String("object", object), zap.Error(err))
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Artifacts are read by other processes (GUI, static servers), so files and
// directories are world-readable like a plain create under the usual umask.
const (
	fileMode os.FileMode = 0o644
	dirMode  os.FileMode = 0o755
)

// writeFileAtomic writes data to a temporary sibling and renames it over p.
func writeFileAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(p), err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(p), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(p), err)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", filepath.Base(p), err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(p), err)
	}
	return nil
}
