package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/service"
)

// ErrorSyncInProgress is returned when a sync of the same kind already runs for a group.
const ErrorSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"

// SyncHandler handles sync triggers and reads of mirrored data.
type SyncHandler struct {
	syncService  SyncServiceInterface
	queryService QueryServiceInterface
	defaults     service.Query
	timeout      time.Duration

	mu      sync.Mutex
	running map[string]struct{}
}

// NewSyncHandler creates a new sync handler. defaults fills fields omitted from
// correlation requests; a zero timeout leaves syncs bounded only by the request.
func NewSyncHandler(syncService SyncServiceInterface, queryService QueryServiceInterface, defaults service.Query, timeout time.Duration) *SyncHandler {
	return &SyncHandler{
		syncService:  syncService,
		queryService: queryService,
		defaults:     defaults,
		timeout:      timeout,
		running:      make(map[string]struct{}),
	}
}

// SyncMembership handles POST /groups/:group/sync/membership.
func (h *SyncHandler) SyncMembership(c *gin.Context) {
	group := strings.TrimSpace(c.Param("group"))

	release, ok := h.acquire("membership/" + group)
	if !ok {
		Error(c, ErrorSyncInProgress, "membership sync already running for "+group, http.StatusConflict)
		return
	}
	defer release()

	ctx, cancel := h.context(c)
	defer cancel()

	summary, err := h.syncService.SyncMembership(ctx, group, progressLogger(ctx, group))
	if err != nil {
		FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, MembershipSyncResponse{GroupID: group, Summary: summary})
}

// SyncCorrelations handles POST /groups/:group/sync/correlations.
func (h *SyncHandler) SyncCorrelations(c *gin.Context) {
	group := strings.TrimSpace(c.Param("group"))

	var req SyncCorrelationsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body")
			return
		}
	}

	q := service.Query{
		Repository:     firstNonEmpty(req.Repository, h.defaults.Repository),
		SearchTerms:    firstNonEmpty(req.SearchTerms, h.defaults.SearchTerms),
		ExclusionTerms: firstNonEmpty(req.ExclusionTerms, h.defaults.ExclusionTerms),
	}

	release, ok := h.acquire("correlations/" + group)
	if !ok {
		Error(c, ErrorSyncInProgress, "correlation sync already running for "+group, http.StatusConflict)
		return
	}
	defer release()

	ctx, cancel := h.context(c)
	defer cancel()

	summary, err := h.syncService.SyncCorrelations(ctx, group, q, progressLogger(ctx, group))
	if err != nil {
		FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, CorrelationSyncResponse{GroupID: group, Summary: summary})
}

// ListMembers handles GET /groups/:group/members.
func (h *SyncHandler) ListMembers(c *gin.Context) {
	group := strings.TrimSpace(c.Param("group"))

	members, err := h.queryService.ListMembers(c.Request.Context(), group)
	if err != nil {
		FromError(c, err)
		return
	}

	resp := MembersResponse{GroupID: group, Members: make([]MemberResponse, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, toMemberResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

// ListCorrelations handles GET /members/:id/correlations.
func (h *SyncHandler) ListCorrelations(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || memberID <= 0 {
		BadRequest(c, "member id must be a positive integer")
		return
	}

	items, err := h.queryService.ListCorrelations(c.Request.Context(), memberID)
	if err != nil {
		FromError(c, err)
		return
	}

	resp := CorrelationsResponse{MemberID: memberID, Items: make([]ItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	c.JSON(http.StatusOK, resp)
}

// GetStatistics handles GET /groups/:group/stats.
func (h *SyncHandler) GetStatistics(c *gin.Context) {
	group := strings.TrimSpace(c.Param("group"))

	stats, err := h.queryService.GroupStats(c.Request.Context(), group)
	if err != nil {
		FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *SyncHandler) acquire(key string) (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.running[key]; busy {
		return nil, false
	}
	h.running[key] = struct{}{}
	return func() {
		h.mu.Lock()
		delete(h.running, key)
		h.mu.Unlock()
	}, true
}

func (h *SyncHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request.Context()
	if id := c.GetHeader("X-Request-ID"); id != "" {
		ctx = logging.ContextWithRunID(ctx, id)
	}
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

func progressLogger(ctx context.Context, group string) executor.ProgressFunc {
	return func(remaining int) {
		logging.Ctx(ctx).Debug().Str("group", group).Int("remaining_seconds", remaining).Msg("waiting for quota")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
