package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type shareRequest struct {
	ExpiresInMinutes *int `json:"expiresInMinutes"`
}

type fileItem struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *HTTPServer) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (s *HTTPServer) signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	u, err := s.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.UserName})
}

func (s *HTTPServer) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := s.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *HTTPServer) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, common.ErrPayloadTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "No file uploaded"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read file"})
		return
	}

	res, err := s.files.Upload(c.Request.Context(), userID(c), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded successfully",
		"fileId":   res.FileID,
		"filename": res.Filename,
		"size":     res.Size,
	})
}

func (s *HTTPServer) share(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	link, err := s.files.CreateShareLink(c.Request.Context(), userID(c), c.Param("fileId"), req.ExpiresInMinutes)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Share link generated",
		"shareLink": baseURL(c) + link.Path,
		"token":     link.Token,
		"expiresAt": link.ExpiresAt,
	})
}

func (s *HTTPServer) myFiles(c *gin.Context) {
	list, err := s.files.ListFiles(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	items := make([]fileItem, 0, len(list))
	for _, f := range list {
		items = append(items, fileItem{
			Filename:     f.Filename,
			OriginalName: f.OriginalName,
			Size:         f.Size,
			MimeType:     f.MimeType,
			CreatedAt:    f.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"files": items})
}

func (s *HTTPServer) download(c *gin.Context) {
	dl, err := s.files.DownloadByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "Invalid or expired download link"})
			return
		}
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(dl.Filename))
	c.Header("Content-Length", strconv.Itoa(len(dl.Data)))
	c.Data(http.StatusOK, dl.MimeType, dl.Data)
}

func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
