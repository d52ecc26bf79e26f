package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	order, err := h.deps.Orders.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListThemes(c *gin.Context) {
	themes, err := h.deps.Themes.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to load themes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}
