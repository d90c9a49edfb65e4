// Package storage archives trip photos to a shared Google Drive folder.
// Drive is the photo landing zone only; trip data itself lives in the ERP.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Uploader stores a named photo payload and returns its storage ID.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// DriveArchive uploads into a fixed Drive folder using a service account.
type DriveArchive struct {
	service  *drive.Service
	folderID string
}

// NewDriveArchive builds the Drive client from a service account JSON file.
func NewDriveArchive(ctx context.Context, credentialsPath, folderID string) (*DriveArchive, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, b, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &DriveArchive{service: svc, folderID: folderID}, nil
}

// Upload creates the file under the archive folder and returns its Drive ID.
func (a *DriveArchive) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	f := &drive.File{
		Name:    filename,
		Parents: []string{a.folderID},
	}
	created, err := a.service.Files.Create(f).
		Context(ctx).
		Media(bytes.NewReader(data)).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return created.Id, nil
}
