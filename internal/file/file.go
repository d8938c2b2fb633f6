package file

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrNotConfigured is returned when no Cloudinary credentials were provided.
var ErrNotConfigured = errors.New("file uploads are not configured")

const selfieFolder = "skypay/selfies"

type FileUploader struct {
	cloud_name string
	api_key    string
	api_secret string
	logger     *slog.Logger
}

func New(cloud_name, api_key, api_secret string, logger *slog.Logger) *FileUploader {
	return &FileUploader{
		cloud_name: cloud_name,
		api_key:    api_key,
		api_secret: api_secret,
		logger:     logger,
	}
}

// UploadSelfie stores a director selfie under the applicant's id and returns its
// public URL, which is what the liveness check is given.
func (f *FileUploader) UploadSelfie(ctx context.Context, applicantID string, file io.Reader) (string, error) {
	if f.cloud_name == "" {
		return "", ErrNotConfigured
	}

	cld, err := cloudinary.NewFromParams(f.cloud_name, f.api_key, f.api_secret)
	if err != nil {
		return "", err
	}

	uploadResult, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:   selfieFolder,
		PublicID: applicantID,
	})
	if err != nil {
		return "", err
	}

	f.logger.Info("selfie uploaded", "applicant_id", applicantID, "url", uploadResult.SecureURL)
	return uploadResult.SecureURL, nil
}
