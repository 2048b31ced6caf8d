package handlers

import (
	"errors"
	"io"
	"net/http"
	"socialconnect/internal/services"
	"socialconnect/internal/utils"
	"strings"

	"github.com/gin-gonic/gin"
)

// respondError writes err as {"error": msg} with its mapped status.
// Unclassified errors are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	status, message := services.Classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// paramID parses a numeric path parameter, answering 404 when it is not one.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindJSON decodes the body into obj. An empty body leaves obj untouched.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

// formImage reads an optional uploaded file. It reads at most limit+1 bytes
// so oversized files still fail validation without being buffered whole.
func formImage(c *gin.Context, field string, limit int64) (*services.ImageUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, services.Validationf("invalid %s upload", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	return &services.ImageUpload{Filename: fh.Filename, Data: data}, nil
}

// formString returns a pointer to the form value, or nil when the key is absent.
func formString(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok {
		return &v
	}
	return nil
}
