package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"photo-generator/internal/models"
	minioclient "photo-generator/internal/storage/minio"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	MaxUploadFiles = 5
	MaxUploadSize  = 10 << 20 // 10MB per file

	uploadMaxEdge = 2048
	uploadQuality = 85
)

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type UploadResponse struct {
	Success bool                   `json:"success"`
	Photos  []models.UploadedPhoto `json:"photos"`
	Message string                 `json:"message"`
}

// UploadPhotos stores customer photos for an order, at most five across all
// requests. Each photo is shrunk to fit 2048x2048 and re-encoded as JPEG
// before it is stored.
func (h *Handler) UploadPhotos(c *gin.Context) {
	orderID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadFiles*MaxUploadSize+1<<20)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read multipart form"})
		return
	}

	files := form.File["photos"]
	switch {
	case len(files) == 0:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no files uploaded"})
		return
	case len(files) > MaxUploadFiles:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("maximum %d photos allowed", MaxUploadFiles)})
		return
	}

	payloads := make([][]byte, len(files))
	for i, header := range files {
		data, err := readUpload(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		payloads[i] = data
	}

	ctx := c.Request.Context()
	order, err := h.deps.Orders.Get(ctx, orderID)
	if err != nil {
		h.fail(c, err, "failed to load order")
		return
	}
	if len(order.Photos)+len(files) > MaxUploadFiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("an order holds at most %d photos, %d already uploaded", MaxUploadFiles, len(order.Photos)),
		})
		return
	}

	photos := make([]models.UploadedPhoto, 0, len(files))
	for i, header := range files {
		compressed, err := compressUpload(payloads[i])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("cannot decode %s", header.Filename)})
			return
		}

		stored, err := h.deps.Blobs.Upload(ctx, compressed, minioclient.FolderUploads)
		if err != nil {
			h.fail(c, err, "failed to store photo")
			return
		}

		photo, err := h.deps.Photos.Create(ctx, models.UploadedPhoto{
			ID:               uuid.New(),
			OrderID:          orderID,
			URL:              stored.URL,
			ObjectID:         stored.ObjectID,
			OriginalFilename: header.Filename,
			CreatedAt:        time.Now().UTC(),
		})
		if err != nil {
			h.fail(c, err, "failed to save photo")
			return
		}
		photos = append(photos, photo)
	}

	h.log.Info().Str("order_id", orderID.String()).Int("photos", len(photos)).Msg("photos uploaded")
	c.JSON(http.StatusCreated, UploadResponse{
		Success: true,
		Photos:  photos,
		Message: fmt.Sprintf("%d photos uploaded successfully", len(photos)),
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > MaxUploadSize {
		return nil, fmt.Errorf("file too large: %s", header.Filename)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot open %s", header.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s", header.Filename)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("file too large: %s", header.Filename)
	}
	if contentType := http.DetectContentType(data); !allowedUploadTypes[contentType] {
		return nil, fmt.Errorf("invalid file type: %s", contentType)
	}
	return data, nil
}

func compressUpload(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	// Fit never enlarges.
	img = imaging.Fit(img, uploadMaxEdge, uploadMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(uploadQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
