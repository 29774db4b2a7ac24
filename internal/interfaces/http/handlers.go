package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/engine"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

const actorKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	service engine.Service
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service engine.Service, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OutcomeResponse reports a committed transition plus its fan-out result
type OutcomeResponse struct {
	Request          *entity.Request `json:"request"`
	Notified         int             `json:"notified"`
	DeliveryDegraded bool            `json:"delivery_degraded"`
}

// ActorMiddleware reads the identity headers set by the authenticating
// proxy. Requests without a valid identity are rejected.
func (h *Handlers) ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid X-User-ID header",
			})
			return
		}

		role := workflow.ParseRole(c.GetHeader("X-User-Role"))
		if !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid X-User-Role header",
			})
			return
		}

		c.Set(actorKey, engine.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) engine.Actor {
	return c.MustGet(actorKey).(engine.Actor)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateRequest handles POST /api/requests (multipart form)
func (h *Handlers) CreateRequest(c *gin.Context) {
	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid amount")
		return
	}

	uploads, err := h.readUploads(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid attachments")
		return
	}

	out, err := h.service.Create(c.Request.Context(), actorFrom(c), engine.CreateInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Amount:      amount,
		Attachments: uploads,
	})
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: outcome(out)})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var filter engine.ListFilter
	if raw := c.Query("state"); raw != "" {
		state := workflow.State(raw)
		if !state.IsValid() {
			h.fail(c, http.StatusBadRequest, "invalid state filter")
			return
		}
		filter.State = &state
	}

	requests, err := h.service.List(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	detail, err := h.service.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// EditRequest handles PUT /api/requests/:id (multipart form; absent fields
// are left unchanged, files are appended)
func (h *Handlers) EditRequest(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var input engine.EditInput
	if v, present := c.GetPostForm("title"); present {
		input.Title = &v
	}
	if v, present := c.GetPostForm("description"); present {
		input.Description = &v
	}
	if v, present := c.GetPostForm("amount"); present {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "invalid amount")
			return
		}
		input.Amount = &amount
	}

	uploads, err := h.readUploads(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid attachments")
		return
	}
	input.Attachments = uploads

	req, err := h.service.Edit(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

type decisionBody struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

// Approve handles POST /api/requests/:id/approve. The stage is determined
// by the caller's role.
func (h *Handlers) Approve(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var body decisionBody
	_ = c.ShouldBindJSON(&body)

	actor := actorFrom(c)
	var out *engine.Outcome
	var err error
	switch actor.Role {
	case workflow.RoleApprover1:
		out, err = h.service.ApproveStage1(c.Request.Context(), actor, id, body.Comment)
	case workflow.RoleApprover2:
		out, err = h.service.ApproveStage2(c.Request.Context(), actor, id, body.Comment)
	default:
		h.error(c, engine.ErrForbidden)
		return
	}
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: outcome(out)})
}

// Reject handles POST /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var body decisionBody
	_ = c.ShouldBindJSON(&body)

	out, err := h.service.Reject(c.Request.Context(), actorFrom(c), id, body.Reason)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: outcome(out)})
}

// MarkPaid handles POST /api/requests/:id/pay
func (h *Handlers) MarkPaid(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	out, err := h.service.MarkPaid(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: outcome(out)})
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"soft": result.Soft}})
}

// DownloadAttachment handles GET /api/attachments/:id
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	att, path, err := h.service.Attachment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.error(c, err)
		return
	}

	c.FileAttachment(path, att.FileName)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	notifications, err := h.service.Notifications(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// UnreadCount handles GET /api/notifications/unread
func (h *Handlers) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"unread": count}})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(c.Request.Context(), actorFrom(c), id); err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// Summary handles GET /api/requests/summary
func (h *Handlers) Summary(c *gin.Context) {
	counts, err := h.service.Summary(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: counts})
}

// readUploads collects multipart files under the "files" field
func (h *Handlers) readUploads(c *gin.Context) ([]entity.AttachmentUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, err
	}

	var uploads []entity.AttachmentUpload
	for _, header := range form.File["files"] {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}

		uploads = append(uploads, entity.AttachmentUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	return uploads, nil
}

func (h *Handlers) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// error maps engine errors onto HTTP status codes
func (h *Handlers) error(c *gin.Context, err error) {
	condition := engine.ConditionOf(err)

	var status int
	switch condition {
	case engine.ConditionNotFound:
		status = http.StatusNotFound
	case engine.ConditionForbidden:
		status = http.StatusForbidden
	case engine.ConditionInvalidAmount:
		status = http.StatusBadRequest
	case engine.ConditionInvalidTransition,
		engine.ConditionNotEditable,
		engine.ConditionConcurrentModification:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		h.logger.Error("unhandled engine error", zap.Error(err))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	c.JSON(status, Response{Success: false, Error: msg, Code: string(condition)})
}

func outcome(out *engine.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Request:          out.Request,
		Notified:         out.Notified,
		DeliveryDegraded: out.Degraded,
	}
}
