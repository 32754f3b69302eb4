package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/batch"
	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/service"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

const (
	ErrorBadRequest    ErrorCode = "BAD_REQUEST"
	ErrorNotFound      ErrorCode = "NOT_FOUND"
	ErrorRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrorDataLoss      ErrorCode = "DATA_LOSS_REFUSED"
	ErrorTimeout       ErrorCode = "TIMEOUT"
	ErrorInternal      ErrorCode = "INTERNAL"
)

// ErrorResponse represents error response structure.
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

// MembershipSyncResponse wraps a membership sync summary.
type MembershipSyncResponse struct {
	GroupID string              `json:"group_id"`
	Summary *domain.SyncSummary `json:"summary"`
}

// CorrelationSyncResponse wraps a correlation sync summary.
type CorrelationSyncResponse struct {
	GroupID string                     `json:"group_id"`
	Summary *domain.CorrelationSummary `json:"summary"`
}

// MembersResponse wraps the members of a group.
type MembersResponse struct {
	GroupID string           `json:"group_id"`
	Members []MemberResponse `json:"members"`
}

// MemberResponse represents a member in response.
type MemberResponse struct {
	ID             int64  `json:"id"`
	Login          string `json:"login"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	IsMaintainer   bool   `json:"is_maintainer"`
	IsActive       bool   `json:"is_active"`
	GovernmentFlag *bool  `json:"government_flag"`
	FirstSeenAt    string `json:"first_seen_at,omitempty"`
	LastSyncedAt   string `json:"last_synced_at,omitempty"`
}

// CorrelationsResponse wraps the items of a member.
type CorrelationsResponse struct {
	MemberID int64          `json:"member_id"`
	Items    []ItemResponse `json:"items"`
}

// ItemResponse represents a correlated item in response.
type ItemResponse struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Author      string `json:"author,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// Error sends error response.
func Error(c *gin.Context, code ErrorCode, message string, statusCode int) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	c.AbortWithStatusJSON(statusCode, resp)
}

// BadRequest sends 400 error.
func BadRequest(c *gin.Context, message string) {
	Error(c, ErrorBadRequest, message, http.StatusBadRequest)
}

// NotFound sends 404 error.
func NotFound(c *gin.Context, message string) {
	Error(c, ErrorNotFound, message, http.StatusNotFound)
}

// InternalError sends 500 error.
func InternalError(c *gin.Context, message string) {
	Error(c, ErrorInternal, message, http.StatusInternalServerError)
}

// FromError maps a service error to a response. Sentinels are checked before
// kinds, so an invalid repository is a 400 even though it carries the
// configuration kind.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGroupRequired), errors.Is(err, batch.ErrInvalidRepository):
		BadRequest(c, err.Error())
		return
	case errors.Is(err, service.ErrMemberNotFound):
		NotFound(c, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		Error(c, ErrorTimeout, "sync timed out", http.StatusGatewayTimeout)
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindConfiguration:
		Error(c, ErrorNotConfigured, err.Error(), http.StatusServiceUnavailable)
	case apperr.KindNotFound:
		NotFound(c, err.Error())
	case apperr.KindRateLimited:
		if resetAt, ok := apperr.ResetHint(err); ok {
			if seconds := int(time.Until(resetAt).Seconds()); seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
		}
		Error(c, ErrorRateLimited, err.Error(), http.StatusTooManyRequests)
	case apperr.KindServerError:
		Error(c, ErrorUpstream, err.Error(), http.StatusBadGateway)
	case apperr.KindDataLoss:
		Error(c, ErrorDataLoss, err.Error(), http.StatusConflict)
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		InternalError(c, "internal error")
	}
}

func toMemberResponse(m domain.Member) MemberResponse {
	resp := MemberResponse{
		ID:             m.ID,
		Login:          m.Login,
		DisplayName:    m.DisplayName,
		AvatarURL:      m.AvatarURL,
		IsMaintainer:   m.IsMaintainer,
		IsActive:       m.IsActive,
		GovernmentFlag: m.GovernmentFlag,
	}
	if m.FirstSeenAt != nil {
		resp.FirstSeenAt = m.FirstSeenAt.Format(time.RFC3339)
	}
	if m.LastSyncedAt != nil {
		resp.LastSyncedAt = m.LastSyncedAt.Format(time.RFC3339)
	}
	return resp
}

func toItemResponse(item domain.CorrelationItem) ItemResponse {
	resp := ItemResponse{
		Number:      item.Number,
		Title:       item.Title,
		URL:         item.URL,
		Description: item.Description,
		Status:      string(item.Status),
		Author:      item.Author,
	}
	if item.ExternalCreatedAt != nil {
		resp.CreatedAt = item.ExternalCreatedAt.Format(time.RFC3339)
	}
	if item.ExternalUpdatedAt != nil {
		resp.UpdatedAt = item.ExternalUpdatedAt.Format(time.RFC3339)
	}
	if item.ExpiresAt != nil {
		resp.ExpiresAt = item.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
