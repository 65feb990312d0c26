package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/dispatch"
	"github.com/pyiy/zimage/internal/history"
	"github.com/pyiy/zimage/internal/imagetool"
	"github.com/pyiy/zimage/internal/ledger"
	"github.com/pyiy/zimage/internal/model"
)

// Handler exposes the orchestration core over HTTP.
type Handler struct {
	dispatcher *dispatch.Service
	history    *history.Manager
	ledger     *ledger.Ledger
	converter  *imagetool.Converter
	logger     *slog.Logger
	// busy gates generation: the front-end issues one request at a time and
	// the server enforces it.
	busy atomic.Bool
}

func NewHandler(d *dispatch.Service, h *history.Manager, l *ledger.Ledger, c *imagetool.Converter, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		history:    h,
		ledger:     l,
		converter:  c,
		logger:     logger.With("component", "api"),
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	if apierr.IsQuota(err) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(statusFor(err), gin.H{
		"error": apierr.Message(err),
		"kind":  string(apierr.KindOf(err)),
	})
}

type generateRequest struct {
	Model         string   `json:"model"`
	Prompt        string   `json:"prompt" binding:"required"`
	AspectRatio   string   `json:"aspect_ratio" binding:"required"`
	Seed          *int64   `json:"seed"`
	EnableHD      bool     `json:"enable_hd"`
	Steps         int      `json:"steps"`
	GuidanceScale *float64 `json:"guidance_scale"`
}

func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if _, err := model.ResolveDimensions(req.AspectRatio, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.busy.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a generation is already in flight"})
		return
	}
	defer h.busy.Store(false)

	img, err := h.dispatcher.Generate(c.Request.Context(), model.GenerationRequest{
		Model:         req.Model,
		Prompt:        req.Prompt,
		AspectRatio:   req.AspectRatio,
		Seed:          req.Seed,
		EnableHD:      req.EnableHD,
		Steps:         req.Steps,
		GuidanceScale: req.GuidanceScale,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.history.Add(*img); err != nil {
		h.logger.Warn("Failed to record history entry", "id", img.ID, "error", err)
	}
	if err := h.history.AddPrompt(req.Prompt); err != nil {
		h.logger.Warn("Failed to record prompt", "error", err)
	}

	c.JSON(http.StatusOK, img)
}

func (h *Handler) Upscale(c *gin.Context) {
	img, err := h.history.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	url, err := h.dispatcher.Upscale(c.Request.Context(), img.URL)
	if err != nil {
		h.fail(c, err)
		return
	}

	img.URL = url
	img.IsUpscaled = true
	if err := h.history.Update(*img); err != nil {
		h.logger.Warn("Failed to persist upscaled record", "id", img.ID, "error", err)
	}
	c.JSON(http.StatusOK, img)
}

type blurRequest struct {
	Blurred bool `json:"blurred"`
}

func (h *Handler) ToggleBlur(c *gin.Context) {
	var req blurRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	img, err := h.history.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	img.IsBlurred = req.Blurred
	if err := h.history.Update(*img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist change"})
		return
	}
	c.JSON(http.StatusOK, img)
}

type optimizeRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language"`
}

func (h *Handler) Optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prompt, err := h.dispatcher.OptimizePrompt(c.Request.Context(), req.Prompt, req.Language)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

func (h *Handler) ListHistory(c *gin.Context) {
	items, err := h.history.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if items == nil {
		items = []model.GeneratedImage{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteHistory(c *gin.Context) {
	remaining, current, err := h.history.Delete(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": remaining, "current": current})
}

func (h *Handler) ListPrompts(c *gin.Context) {
	prompts, err := h.history.Prompts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load prompts"})
		return
	}
	if prompts == nil {
		prompts = []string{}
	}
	c.JSON(http.StatusOK, prompts)
}

func (h *Handler) CredentialStats(c *gin.Context) {
	stats, err := h.ledger.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credential stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type credentialsRequest struct {
	Credentials string `json:"credentials"`
}

func (h *Handler) SetCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.ledger.SetCredentials(req.Credentials); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist credentials"})
		return
	}
	stats, err := h.ledger.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credential stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Download(c *gin.Context) {
	img, err := h.history.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	format, err := imagetool.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	width := 0
	if raw := c.Query("width"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil || width < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
			return
		}
	}

	data, err := h.converter.Fetch(c.Request.Context(), img.URL, format, width)
	if err != nil {
		h.logger.Error("Download conversion failed", "id", img.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch artifact"})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}
