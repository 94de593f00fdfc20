// Package gdrive adapts Google Drive v3 to the three archive operations the
// ingestion pipeline needs: list folders, create a folder, create a file.
package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/noah-isme/ipcr-api/internal/models"
)

// FolderMimeType marks Drive entries that are folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// Folder is a Drive folder reference.
type Folder struct {
	ID   string
	Name string
}

// File is an uploaded Drive file with its shareable link.
type File struct {
	ID   string
	Name string
	Link string
}

// Factory builds per-request providers from owner credentials.
type Factory struct {
	oauth   *oauth2.Config
	options []option.ClientOption
}

// NewFactory configures token refresh with the application's OAuth client.
// Extra options are appended to every Drive client (tests point the endpoint at a fake server).
func NewFactory(clientID, clientSecret string, opts ...option.ClientOption) *Factory {
	return &Factory{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{drive.DriveFileScope},
		},
		options: opts,
	}
}

// NewProvider returns a Drive provider acting as the credential owner.
func (f *Factory) NewProvider(ctx context.Context, creds models.StorageCredentials) (*Provider, error) {
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, fmt.Errorf("drive credentials missing tokens")
	}
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}
	// Refresh runs on a context detached from client cancellation.
	source := f.oauth.TokenSource(context.WithoutCancel(ctx), token)

	opts := append([]option.ClientOption{option.WithTokenSource(source)}, f.options...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("build drive client: %w", err)
	}
	return &Provider{files: svc.Files}, nil
}

// NewProviderWithClient builds a provider over an already authenticated HTTP client.
func NewProviderWithClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*Provider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("build drive client: %w", err)
	}
	return &Provider{files: svc.Files}, nil
}

// Provider performs archive operations against one owner's Drive.
type Provider struct {
	files *drive.FilesService
}

// ListFolders returns non-trashed folders named exactly name under parentID ("" = root).
func (p *Provider) ListFolders(ctx context.Context, parentID, name string) ([]Folder, error) {
	parent := parentID
	if parent == "" {
		parent = "root"
	}
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), FolderMimeType, escapeQuery(parent))

	list, err := p.files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive folders %q: %w", name, err)
	}

	folders := make([]Folder, 0, len(list.Files))
	for _, f := range list.Files {
		folders = append(folders, Folder{ID: f.Id, Name: f.Name})
	}
	return folders, nil
}

// CreateFolder creates a folder under parentID ("" = root).
func (p *Provider) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := p.files.Create(meta).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return Folder{}, fmt.Errorf("create drive folder %q: %w", name, err)
	}
	return Folder{ID: created.Id, Name: created.Name}, nil
}

// CreateFile uploads content into parentID and returns its web view link.
func (p *Provider) CreateFile(ctx context.Context, name, parentID string, content []byte, mimeType string) (File, error) {
	meta := &drive.File{Name: name}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := p.files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		Fields("id, name, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return File{}, fmt.Errorf("upload drive file %q: %w", name, err)
	}
	return File{ID: created.Id, Name: created.Name, Link: created.WebViewLink}, nil
}

func escapeQuery(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
