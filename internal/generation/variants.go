package generation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"photo-generator/internal/models"
	minioclient "photo-generator/internal/storage/minio"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Full-resolution product tiers.
const (
	TierStandard = "standard"
	TierPortrait = "portrait"
)

type VariantKind int

const (
	VariantFullRes VariantKind = iota
	VariantSquare
	VariantBanner
	VariantStory
)

type VariantSpec struct {
	Kind    VariantKind
	Folder  string
	Width   int
	Height  int
	Quality int
}

// VariantSpecs lists the four renditions for a full-resolution tier.
func VariantSpecs(tier string) []VariantSpec {
	fullW, fullH := 2048, 2560
	if tier == TierPortrait {
		fullW, fullH = 3000, 4000
	}
	return []VariantSpec{
		{Kind: VariantFullRes, Folder: minioclient.FolderFullRes, Width: fullW, Height: fullH, Quality: 90},
		{Kind: VariantSquare, Folder: minioclient.FolderSquare, Width: 1080, Height: 1080, Quality: 85},
		{Kind: VariantBanner, Folder: minioclient.FolderBanner, Width: 820, Height: 312, Quality: 85},
		{Kind: VariantStory, Folder: minioclient.FolderStory, Width: 1080, Height: 1920, Quality: 85},
	}
}

// RegionRewrite prefixes the blob host for regions where the default host is degraded.
type RegionRewrite struct {
	Enabled    bool
	HostPrefix string
}

func (r RegionRewrite) Apply(raw string) string {
	if !r.Enabled || r.HostPrefix == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || strings.HasPrefix(u.Host, r.HostPrefix) {
		return raw
	}
	u.Host = r.HostPrefix + u.Host
	return u.String()
}

type blobUploader interface {
	Upload(ctx context.Context, data []byte, folder string) (minioclient.UploadResult, error)
}

// VariantPipeline fans one source image out into the four platform renditions.
type VariantPipeline struct {
	store   blobUploader
	specs   []VariantSpec
	rewrite RegionRewrite
}

func NewVariantPipeline(store blobUploader, tier string, rewrite RegionRewrite) *VariantPipeline {
	return &VariantPipeline{
		store:   store,
		specs:   VariantSpecs(tier),
		rewrite: rewrite,
	}
}

// Run renders and uploads every variant concurrently. The first failing branch
// cancels the context of the others, but Run still waits for all branches to
// return before reporting that error. No partial set is returned.
func (p *VariantPipeline) Run(ctx context.Context, src []byte) (models.VariantURLs, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return models.VariantURLs{}, fmt.Errorf("failed to decode generated image: %w", err)
	}

	urls := make([]string, len(p.specs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, spec := range p.specs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			data, err := Render(img, spec)
			if err != nil {
				return err
			}
			res, err := p.store.Upload(egCtx, data, spec.Folder)
			if err != nil {
				return fmt.Errorf("upload %s variant: %w", spec.Folder, err)
			}
			urls[i] = p.rewrite.Apply(res.URL)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return models.VariantURLs{}, err
	}

	var out models.VariantURLs
	for i, spec := range p.specs {
		switch spec.Kind {
		case VariantFullRes:
			out.FullRes = urls[i]
		case VariantSquare:
			out.Square = urls[i]
		case VariantBanner:
			out.Banner = urls[i]
		case VariantStory:
			out.Story = urls[i]
		}
	}
	return out, nil
}

// Render crops img to fill the spec's box around the center and encodes it as JPEG.
func Render(img image.Image, spec VariantSpec) ([]byte, error) {
	resized := imaging.Fill(img, spec.Width, spec.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(spec.Quality)); err != nil {
		return nil, fmt.Errorf("encode %dx%d variant: %w", spec.Width, spec.Height, err)
	}
	return buf.Bytes(), nil
}
