package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const uploadField = "image"

// maxOriginalName is the width of the original_name column.
const maxOriginalName = 400

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

type imageView struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
}

func uploadURL(filename string) string {
	return "/uploads/" + filename
}

func uploadFail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func (h *Handler) handleUpload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadSize+1<<20)

	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadFail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		uploadFail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	if fh.Size > h.opts.MaxUploadSize {
		uploadFail(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		uploadFail(c, http.StatusBadRequest, "Only image files are allowed!")
		return
	}

	f, err := fh.Open()
	if err != nil {
		uploadFail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	mt, err := sniff(f)
	if err != nil {
		h.logger.Error(ctx, "upload sniff failed", "error", err)
		uploadFail(c, http.StatusInternalServerError, "Upload failed")
		return
	}
	if !strings.HasPrefix(mt, "image/") {
		uploadFail(c, http.StatusBadRequest, "Only image files are allowed!")
		return
	}

	name := "image-" + uuid.NewString() + ext
	path, err := h.files.Save(ctx, name, f, fh.Size, mt)
	if err != nil {
		h.logger.Error(ctx, "upload store failed", "error", err)
		uploadFail(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	img, err := h.images.Create(ctx, owner(c), models.ImageMeta{
		Filename:     name,
		OriginalName: truncateRunes(filepath.Base(fh.Filename), maxOriginalName),
		Path:         path,
		Size:         fh.Size,
		MimeType:     mt,
	})
	if err != nil {
		h.logger.Error(ctx, "upload record failed", "error", err)
		if rmErr := h.files.Remove(ctx, path); rmErr != nil {
			h.logger.Warn(ctx, "orphaned upload", "path", path, "error", rmErr)
		}
		uploadFail(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file": gin.H{
			"id":       img.ID,
			"filename": img.Filename,
			"url":      uploadURL(img.Filename),
		},
	})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sniff detects the content type from the file header and rewinds f.
func sniff(f multipart.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

func (h *Handler) handleListImages(c *gin.Context) {
	rows, err := h.images.List(c.Request.Context(), owner(c), 0)
	if err != nil {
		h.failFor(c, err, "Failed to load images")
		return
	}

	data := make([]imageView, 0, len(rows))
	for _, r := range rows {
		data = append(data, imageView{
			ID:           r.ID,
			Filename:     r.Filename,
			OriginalName: r.OriginalName,
			URL:          uploadURL(r.Filename),
			CreatedAt:    r.CreatedAt,
			Size:         r.Size,
			MimeType:     r.MimeType,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func (h *Handler) handleDeleteImage(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.images.Delete(ctx, id, owner(c))
	if err != nil {
		h.failFor(c, err, "Failed to delete image")
		return
	}

	if res.Affected > 0 && res.Path != "" {
		if err := h.files.Remove(ctx, res.Path); err != nil {
			h.logger.Warn(ctx, "stored file not removed", "path", res.Path, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": res.Affected > 0, "affected": res.Affected})
}

func (h *Handler) handleServeUpload(c *gin.Context) {
	obj, err := h.files.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrValidation) {
			c.Status(http.StatusNotFound)
			return
		}
		h.logger.Error(c.Request.Context(), "open upload failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, ct, obj.Body, map[string]string{
		"X-Content-Type-Options": "nosniff",
	})
}
