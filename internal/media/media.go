package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
)

// Fallback size limits, used when the config carries zeros.
const (
	defaultUploadLimit    = 25 << 20
	defaultCompressTarget = 8 << 20
)

// Downloader materializes an attachment from the source platform's media
// store. The session layer implements it; tests substitute fakes.
type Downloader interface {
	Download(ctx context.Context, ref model.AttachmentRef) (io.ReadCloser, error)
}

// Pipeline turns an attachment reference into a local file ready for upload:
// download, watermark images, then force the artifact under the destination
// platform's size ceiling. Every produced file is owned by the caller once
// Process returns; failed attempts never leave files behind.
type Pipeline struct {
	downloader     Downloader
	logger         *slog.Logger
	tempDir        string
	uploadLimit    int64
	compressTarget int64
	watermark      *watermark
}

func New(cfg *config.MediaConfig, downloader Downloader, logger *slog.Logger) (*Pipeline, error) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "gramhook")
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create media temp directory: %w", err)
	}

	// A configured watermark that cannot be decoded is an operator mistake
	// and stops the process at startup. Per-image compositing failures later
	// degrade to forwarding the original instead.
	var wm *watermark
	if cfg.WatermarkPath != "" {
		var err error
		if wm, err = loadWatermark(cfg.WatermarkPath); err != nil {
			return nil, err
		}
	}

	uploadLimit := cfg.UploadLimit
	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}

	compressTarget := cfg.CompressTarget
	if compressTarget <= 0 {
		compressTarget = defaultCompressTarget
	}

	return &Pipeline{
		downloader:     downloader,
		logger:         logger,
		tempDir:        tempDir,
		uploadLimit:    uploadLimit,
		compressTarget: compressTarget,
		watermark:      wm,
	}, nil
}

// Process materializes one attachment and returns the upload-ready artifact.
// Images get the watermark; artifacts over the upload ceiling are re-encoded
// (images) or dropped (everything else). An error means the attachment is
// dropped; the message itself still goes out.
func (p *Pipeline) Process(ctx context.Context, messageID int, ref model.AttachmentRef) (*model.ProcessedAttachment, error) {
	filename := sanitizeFilename(ref.Filename)
	localPath := p.tempPath(messageID, filename)

	if err := p.download(ctx, ref, localPath); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	if ref.Kind == model.KindImage && p.watermark != nil {
		localPath, filename = p.applyWatermark(localPath, filename)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		os.Remove(localPath)

		return nil, err
	}

	size := info.Size()
	if size > p.uploadLimit {
		if ref.Kind != model.KindImage {
			os.Remove(localPath)

			return nil, errs.WrapAttachmentTooLarge(filename, size, p.uploadLimit)
		}

		if localPath, filename, size, err = p.shrinkImage(localPath, filename); err != nil {
			return nil, err
		}
	}

	return &model.ProcessedAttachment{
		Kind:      ref.Kind,
		LocalPath: localPath,
		Filename:  filename,
		Size:      size,
	}, nil
}

// download streams the attachment body into the namespaced temp file.
func (p *Pipeline) download(ctx context.Context, ref model.AttachmentRef, localPath string) error {
	body, err := p.downloader.Download(ctx, ref)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(localPath)

		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(localPath)

		return err
	}

	return nil
}

// applyWatermark composites the overlay and re-encodes to JPEG. Compositing
// failures are logged and the original file is forwarded unwatermarked;
// losing the watermark is acceptable, losing the message is not.
func (p *Pipeline) applyWatermark(localPath, filename string) (string, string) {
	jpegPath := withJPEGExt(localPath)

	if err := p.watermark.apply(localPath, jpegPath); err != nil {
		p.logger.Warn("watermark compositing failed, forwarding original",
			slog.String("file", filename),
			slog.Any("err", err),
		)

		return localPath, filename
	}

	if jpegPath != localPath {
		os.Remove(localPath)
	}

	return jpegPath, withJPEGExt(filename)
}

// shrinkImage re-encodes an oversized image until it fits the compress
// target. The source file is always consumed: either replaced by the smaller
// artifact or deleted when the quality floor is reached.
func (p *Pipeline) shrinkImage(localPath, filename string) (string, string, int64, error) {
	jpegPath := withJPEGExt(localPath)

	size, err := compressImage(localPath, jpegPath, p.compressTarget)
	if err != nil {
		os.Remove(localPath)

		return "", "", 0, err
	}

	if jpegPath != localPath {
		os.Remove(localPath)
	}

	return jpegPath, withJPEGExt(filename), size, nil
}

// tempPath namespaces the artifact by message id and timestamp so two
// in-flight pipelines can never collide on a filename.
func (p *Pipeline) tempPath(messageID int, filename string) string {
	return filepath.Join(p.tempDir, fmt.Sprintf("%d_%d_%s", messageID, time.Now().UnixNano(), filename))
}

// sanitizeFilename strips any path components from the suggested name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "attachment"
	}

	return name
}

// withJPEGExt swaps the extension for .jpg unless it already is a JPEG one.
func withJPEGExt(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".jpg") || strings.EqualFold(ext, ".jpeg") {
		return path
	}

	return strings.TrimSuffix(path, ext) + ".jpg"
}
