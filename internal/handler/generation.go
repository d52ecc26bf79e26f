package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"photo-generator/internal/models"
	"photo-generator/internal/queue/rabbitmq"
	redisclient "photo-generator/pkg/database/redis"

	"github.com/gin-gonic/gin"
)

const artifactCacheTTL = 10 * time.Minute

type GenerateRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	ThemeID string `json:"themeId" binding:"required"`
}

// Generate runs a generation inline and answers with the variant URLs.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderId and themeId are required"})
		return
	}
	orderID, ok := parseID(c, req.OrderID)
	if !ok {
		return
	}

	res, err := h.deps.Generator.Generate(c.Request.Context(), orderID, req.ThemeID)
	if err != nil {
		h.fail(c, err, "failed to generate photo")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"generationId": res.GenerationID,
		"urls":         res.URLs,
	})
}

// QueueGeneration hands the request to the worker pool.
func (h *Handler) QueueGeneration(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderId and themeId are required"})
		return
	}
	if _, ok := parseID(c, req.OrderID); !ok {
		return
	}

	body, err := json.Marshal(rabbitmq.GenerationJob{
		OrderID:     req.OrderID,
		ThemeID:     req.ThemeID,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		h.fail(c, err, "failed to create generation job")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.deps.Queue.Publish(ctx, body); err != nil {
		h.fail(c, err, "failed to queue generation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "generation queued",
	})
}

// GetGeneration reports an artifact. Terminal states never change again,
// so only those are cached.
func (h *Handler) GetGeneration(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf("generation:%s", id)
	if cached, err := h.deps.Cache.Get(ctx, cacheKey); err == nil {
		var artifact models.GeneratedArtifact
		if err := json.Unmarshal([]byte(cached), &artifact); err == nil {
			c.JSON(http.StatusOK, artifact)
			return
		}
	} else if !errors.Is(err, redisclient.ErrCacheMiss) {
		h.log.Warn().Err(err).Msg("generation cache read failed")
	}

	artifact, err := h.deps.Artifacts.Get(ctx, id)
	if err != nil {
		h.fail(c, err, "failed to load generation")
		return
	}

	if artifact.Status.Terminal() {
		if raw, err := json.Marshal(artifact); err == nil {
			if err := h.deps.Cache.Set(ctx, cacheKey, string(raw), artifactCacheTTL); err != nil {
				h.log.Warn().Err(err).Msg("generation cache write failed")
			}
		}
	}

	c.JSON(http.StatusOK, artifact)
}
