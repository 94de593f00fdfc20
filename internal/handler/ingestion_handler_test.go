package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/service"
)

type ingestionServiceMock struct {
	owner    models.Owner
	creds    *models.StorageCredentials
	period   models.Period
	contents map[string]string
}

func (m *ingestionServiceMock) Ingest(ctx context.Context, owner models.Owner, creds *models.StorageCredentials, period models.Period, files []service.IngestFile) ([]dto.IngestResult, error) {
	m.owner, m.creds, m.period = owner, creds, period
	m.contents = make(map[string]string)
	results := make([]dto.IngestResult, 0, len(files))
	for i, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		m.contents[f.Name] = string(body)
		status := dto.IngestStatusSuccess
		if i == 1 {
			status = dto.IngestStatusFailed
		}
		results = append(results, dto.IngestResult{Filename: f.Name, Status: status})
	}
	return results, nil
}

func multipartUpload(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestIngestionHandlerUpload(t *testing.T) {
	svc := &ingestionServiceMock{}
	handler := NewIngestionHandler(svc)

	body, contentType := multipartUpload(t,
		map[string]string{"a.pdf": "%PDF-a", "b.pdf": "%PDF-b"},
		map[string]string{"academicYear": "2024-2025", "semester": "2nd"},
	)
	c, w := newGinContext(http.MethodPost, "/documents/upload", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	c.Request.Header.Set(StorageCredentialsHeader, `{"access_token":"tok"}`)
	withClaims(c, professorClaims)

	handler.Upload(c)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, 2.0, env.Meta["total"])
	assert.Equal(t, 1.0, env.Meta["succeeded"])
	assert.Equal(t, 1.0, env.Meta["failed"])
	var results []dto.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	assert.Len(t, results, 2)

	assert.Equal(t, "prof-1", svc.owner.ID)
	require.NotNil(t, svc.creds)
	assert.Equal(t, "tok", svc.creds.AccessToken)
	assert.Equal(t, models.Period{AcademicYear: "2024-2025", Semester: "2nd"}, svc.period)
	assert.Equal(t, "%PDF-a", svc.contents["a.pdf"])
}

func TestIngestionHandlerRequiresFiles(t *testing.T) {
	handler := NewIngestionHandler(&ingestionServiceMock{})

	body, contentType := multipartUpload(t, nil, map[string]string{"semester": "1st"})
	c, w := newGinContext(http.MethodPost, "/documents/upload", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	withClaims(c, professorClaims)

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandlerRequiresIdentity(t *testing.T) {
	handler := NewIngestionHandler(&ingestionServiceMock{})
	c, w := newGinContext(http.MethodPost, "/documents/upload", nil)

	handler.Upload(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
