package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/service"
)

const deliveryHost = "https://res.cloudinary.com"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Storage keeps document binaries in Cloudinary. Paths have the form
// "<resource_type>/<public_id>".
type Storage struct {
	client    *cloudinary.Cloudinary
	cloudName string
	folder    string
	logger    zerolog.Logger
}

var _ service.FileStorage = (*Storage)(nil)

// New constructs a Cloudinary-backed file store.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &Storage{
		client:    cld,
		cloudName: cfg.CloudName,
		folder:    strings.Trim(cfg.Folder, "/"),
		logger:    logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload streams the file to Cloudinary.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (service.StoredFile, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     buildPublicID(name),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return service.StoredFile{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return service.StoredFile{}, fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	resourceType := result.ResourceType
	if resourceType == "" {
		resourceType = "raw"
	}
	path := resourceType + "/" + result.PublicID

	s.logger.Info().Str("path", path).Int("bytes", result.Bytes).Msg("file uploaded to cloudinary")

	return service.StoredFile{
		Path: path,
		URL:  result.SecureURL,
		Size: int64(result.Bytes),
	}, nil
}

// Remove destroys the asset. Assets that are already gone count as removed.
func (s *Storage) Remove(ctx context.Context, path string) error {
	resourceType, publicID, err := splitPath(path)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}

	switch result.Result {
	case "ok", "not found":
		s.logger.Info().Str("path", path).Str("result", result.Result).Msg("file removed from cloudinary")
		return nil
	default:
		return fmt.Errorf("cloudinary destroy returned %q", result.Result)
	}
}

// PublicURL builds the secure delivery URL for a stored path.
func (s *Storage) PublicURL(path string) string {
	resourceType, publicID, err := splitPath(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/upload/%s", deliveryHost, s.cloudName, resourceType, publicID)
}

func splitPath(path string) (string, string, error) {
	resourceType, publicID, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || resourceType == "" || publicID == "" {
		return "", "", errors.New("invalid storage path")
	}
	return resourceType, publicID, nil
}

// buildPublicID keeps a readable stem of the original name and appends a
// random suffix so re-uploads of the same file never collide.
func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}

	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
