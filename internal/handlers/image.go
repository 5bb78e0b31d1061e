package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inkpress/internal/errs"
	"inkpress/internal/imagehost"
	"inkpress/internal/middleware"
)

const (
	maxImageSize = 10 << 20
	// room for the multipart framing around the file
	maxUploadBody = maxImageSize + 1<<20
)

const imageTooLarge = "Images must be at most 10MB"

// ImageHandler forwards uploads to the configured image host.
type ImageHandler struct {
	host imagehost.Host
}

func NewImageHandler(host imagehost.Host) *ImageHandler {
	return &ImageHandler{host: host}
}

// Upload POST /api/images
// Only active authors and admins may upload.
func (h *ImageHandler) Upload(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil || !user.Active || !user.Role.CanAuthor() {
		writeError(c, errs.Unauthorized("only authors can upload images"))
		return
	}

	if c.Request.ContentLength > maxUploadBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": imageTooLarge})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": imageTooLarge})
			return
		}
		badRequest(c, "Please choose an image to upload")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		badRequest(c, "Only image files can be uploaded")
		return
	}
	if header.Size > maxImageSize {
		badRequest(c, imageTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(data) > maxImageSize {
		badRequest(c, imageTooLarge)
		return
	}

	img, err := h.host.Upload(c.Request.Context(), header.Filename, contentType, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}
