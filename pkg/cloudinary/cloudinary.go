package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const defaultFolder = "build-artifacts"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether enough credentials are present to build a mirror.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Mirror keeps a copy of downloaded build artifacts in Cloudinary so they stay
// available after the CI server expires its build history.
type Mirror struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary artifact mirror.
func New(cfg Config, logger zerolog.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = defaultFolder
	}

	return &Mirror{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "artifact_mirror").Logger(),
	}, nil
}

// MirrorArtifact uploads the artifact of one build and returns its secure URL.
// Uploading the same build twice overwrites the earlier copy.
func (m *Mirror) MirrorArtifact(ctx context.Context, planKey string, buildNumber int, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       m.folder,
		PublicID:     PublicID(planKey, buildNumber, name),
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	}

	result, err := m.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload artifact: %s", result.Error.Message)
	}

	m.logger.Info().
		Str("public_id", result.PublicID).
		Str("plan_key", planKey).
		Int("build_number", buildNumber).
		Msg("build artifact mirrored")

	return result.SecureURL, nil
}

// PublicID derives a stable asset id from the plan key, build number and file name.
func PublicID(planKey string, buildNumber int, name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = sanitize(base)
	if base == "" {
		base = "artifact"
	}

	return fmt.Sprintf("%s-build-%d-%s", sanitize(strings.ToLower(planKey)), buildNumber, base)
}

func sanitize(value string) string {
	value = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, value)
	return strings.Trim(value, "-")
}
