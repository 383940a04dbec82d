package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var valueValidator = utils.DefaultJSONValidator()

// LoadValue returns the stored value of a key. A missing key and a stored
// null both answer found=false with a null value.
func (h *Handlers) LoadValue(c *gin.Context) {
	key := c.Param("key")
	if err := utils.ValidateKey(key); err != nil {
		badRequest(c, err)
		return
	}

	raw, found := h.store.LoadRaw(c.Request.Context(), key)
	value := json.RawMessage("null")
	if found {
		value = raw
	}
	c.JSON(http.StatusOK, gin.H{
		"key":   key,
		"value": value,
		"found": found,
	})
}

// SaveValue stores the raw JSON request body under a key. Backend failures
// are reported as ok=false, not as an HTTP error.
func (h *Handlers) SaveValue(c *gin.Context) {
	key := c.Param("key")
	if err := utils.ValidateKey(key); err != nil {
		badRequest(c, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxJSONSize+1))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "value too large"})
		return
	}
	if err := valueValidator.ValidateJSON(body); err != nil {
		badRequest(c, err)
		return
	}

	var value any
	if err := sonic.ConfigStd.Unmarshal(body, &value); err != nil {
		badRequest(c, err)
		return
	}

	ok := h.store.Save(c.Request.Context(), key, value)
	if !ok {
		h.logger.Warn("Value not persisted", zap.String("key", key))
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

// DeleteValue removes a key from every backend.
func (h *Handlers) DeleteValue(c *gin.Context) {
	key := c.Param("key")
	if err := utils.ValidateKey(key); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": h.store.Delete(c.Request.Context(), key)})
}

// ClearStore empties every backend.
func (h *Handlers) ClearStore(c *gin.Context) {
	ok := h.store.Clear(c.Request.Context())
	h.logger.Info("Store cleared", zap.Bool("ok", ok))
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}
