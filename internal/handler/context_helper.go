package handler

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/middleware"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

// StorageCredentialsHeader carries the caller's archive token bundle as JSON
// or base64-encoded JSON. It is read per request and never stored.
const StorageCredentialsHeader = "X-Storage-Credentials"

func claimsFromContext(c *gin.Context) *models.IdentityClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func currentOwner(c *gin.Context) (models.Owner, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Owner{}, appErrors.ErrUnauthorized
	}
	return claims.Owner(), nil
}

// targetOwnerID honours ?ownerId= for admins and rejects it for anyone else
// naming a different owner.
func targetOwnerID(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	requested := strings.TrimSpace(c.Query("ownerId"))
	if requested == "" || requested == claims.OwnerID {
		return claims.OwnerID, nil
	}
	if claims.Role != models.RoleAdmin {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only admins may act for another owner")
	}
	return requested, nil
}

func storageCredentials(c *gin.Context) (*models.StorageCredentials, error) {
	raw := strings.TrimSpace(c.GetHeader(StorageCredentialsHeader))
	if raw == "" {
		return nil, nil
	}
	payload := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			decoded, err = base64.RawURLEncoding.DecodeString(raw)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "storage credentials must be JSON or base64 JSON")
		}
		payload = decoded
	}
	var creds models.StorageCredentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid storage credentials")
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, nil
	}
	return &creds, nil
}

func queryInt(c *gin.Context, keys ...string) int {
	for _, key := range keys {
		if raw := c.Query(key); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
		}
	}
	return 0
}
