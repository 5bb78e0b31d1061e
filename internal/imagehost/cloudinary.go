package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"inkpress/internal/errs"
	"inkpress/internal/models"
)

const cloudinaryFolder = "posts"

var errCloudinaryUnconfigured = errors.New("cloudinary is not configured")

// Cloudinary uploads through Cloudinary's signed upload API.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary builds the host. Missing credentials are not an error here:
// the server starts and every upload fails until they are set.
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return &Cloudinary{}, nil
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, filename, contentType string, data []byte) (*models.Image, error) {
	if c.cld == nil {
		return nil, errs.Upstream("cloudinary upload", errCloudinaryUnconfigured)
	}

	res, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{Folder: cloudinaryFolder})
	if err != nil {
		return nil, errs.Upstream("cloudinary upload", err)
	}
	if res.Error.Message != "" {
		return nil, errs.Upstream("cloudinary upload", errors.New(res.Error.Message))
	}

	img := &models.Image{
		ID:     res.PublicID,
		URL:    res.SecureURL,
		Width:  res.Width,
		Height: res.Height,
	}
	if img.Width == 0 || img.Height == 0 {
		img.Width, img.Height = Dimensions(data)
	}
	return img, nil
}
