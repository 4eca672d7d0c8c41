// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/paging"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
)

const dateLayout = "2006-01-02"

// listItem is one audit event as returned to the client.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	ActorID       string            `json:"actor_id,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	OK      bool       `json:"ok"`
	Events  []listItem `json:"events"`
	Start   int        `json:"start"`
	HasNext bool       `json:"has_next"`
}

// ServeList handles GET /audit: the caller's organization's audit events,
// newest first.
//
// Query: category, event_type, start_date, end_date (YYYY-MM-DD), start, limit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.CurrentAdmin(r.Context())
	if !ok {
		uierrors.RenderUnauthorized(w, "missing bearer token")
		return
	}

	q := r.URL.Query()
	page := paging.Parse(r)
	orgID := admin.OrgID
	filter := audit.QueryFilter{
		OrganizationID: &orgID,
		Category:       strings.TrimSpace(q.Get("category")),
		EventType:      strings.TrimSpace(q.Get("event_type")),
		Limit:          page.LimitPlusOne(),
		Offset:         page.Offset(),
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			h.ErrLog.Write(w, r, apperr.New(apperr.ErrValidation, "start_date must be YYYY-MM-DD"))
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			h.ErrLog.Write(w, r, apperr.New(apperr.ErrValidation, "end_date must be YYYY-MM-DD"))
			return
		}
		// End of day
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &end
	}

	resp := listResponse{OK: true, Events: []listItem{}, Start: page.Start}
	if h.Events == nil {
		respond.JSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal(err, "query audit events"))
		return
	}
	events, resp.HasNext = paging.Trim(events, page.Limit)

	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.Hex()
		}
		resp.Events = append(resp.Events, item)
	}
	respond.JSON(w, http.StatusOK, resp)
}
