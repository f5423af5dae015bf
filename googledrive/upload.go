package googledrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultUploadUrl is the drive v3 multipart upload endpoint
	DefaultUploadUrl = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart"

	// Boundary is the fixed multipart boundary token used for every upload
	Boundary = "boundary"
)

type TokenGetter interface {
	Get(ctx context.Context) (string, error)
}

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StaticToken is a TokenGetter for an access token handed over by another service
type StaticToken string

func (t StaticToken) Get(_ context.Context) (string, error) {
	if len(t) == 0 {
		return "", fmt.Errorf("google drive access token is empty")
	}
	return string(t), nil
}

// File to be uploaded into a drive folder
type File struct {
	Name     string
	FolderId string
	Content  string
}

// UploadHelper a helper struct for sending uploads to google drive
type UploadHelper struct {
	tokenGetter TokenGetter
	client      HttpClient
	uploadUrl   string
}

func NewUploadHelper(client HttpClient, tg TokenGetter, uploadUrl string) (*UploadHelper, error) {
	if tg == nil {
		return nil, fmt.Errorf("tokenGetter needs to be provided")
	}
	if len(uploadUrl) == 0 {
		uploadUrl = DefaultUploadUrl
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &UploadHelper{
		tokenGetter: tg,
		client:      client,
		uploadUrl:   uploadUrl,
	}, nil
}

type UploadError struct {
	fileName   string
	statusCode int
}

func (u UploadError) Error() string {
	return fmt.Sprintf("error uploading to google drive - status code: %v, file: %v", u.statusCode, u.fileName)
}

func (u UploadError) StatusCode() int {
	return u.statusCode
}

// MultipartBody renders the two part multipart/related payload for f:
// json metadata first, then the plain text content
func MultipartBody(f File) ([]byte, error) {
	name, err := json.Marshal(f.Name)
	if err != nil {
		return nil, err
	}
	folder, err := json.Marshal(f.FolderId)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "--%s\r\n", Boundary)
	b.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, `{"name": %s, "parents": [%s]}`, name, folder)
	fmt.Fprintf(&b, "\r\n--%s\r\n", Boundary)
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	b.WriteString(f.Content)
	fmt.Fprintf(&b, "\r\n--%s--", Boundary)
	return b.Bytes(), nil
}

// Upload sends f to google drive as a multipart upload and returns the response body untouched
// - UploadError returned if status code is not 2xx
// - json errors are wrapped, so callers can tell a malformed body apart with errors.As
func Upload(ctx context.Context, h *UploadHelper, f File) (json.RawMessage, error) {
	body, err := MultipartBody(f)
	if err != nil {
		return nil, fmt.Errorf("unable to create google drive payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.uploadUrl, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to create google drive request: %w", err)
	}

	token, err := h.tokenGetter.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get google drive auth token: %w", err)
	}
	req.Header = http.Header{
		"Content-Type":  {"multipart/related; boundary=" + Boundary},
		"Authorization": {"Bearer " + token},
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to send request to google drive: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UploadError{fileName: f.Name, statusCode: resp.StatusCode}
	}
	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read google drive response: %w", err)
	}

	var raw json.RawMessage
	if err = json.Unmarshal(resBody, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse google drive response: %w", err)
	}
	return raw, nil
}
