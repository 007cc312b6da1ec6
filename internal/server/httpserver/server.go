// Package httpserver exposes the file vault over HTTP with gin.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is the allowance for multipart framing on top of the
// largest accepted file.
const multipartOverhead = 1 << 20

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(token string) (string, error)
}

type FileService interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*services.UploadResult, error)
	CreateShareLink(ctx context.Context, requesterID, fileID string, ttlMinutes *int) (*services.ShareLink, error)
	ListFiles(ctx context.Context, ownerID string) ([]models.FileSummary, error)
	DownloadByToken(ctx context.Context, token string) (*services.Download, error)
}

// Limiter throttles anonymous downloads per client.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

type HTTPServer struct {
	address       string
	users         UserService
	files         FileService
	limiter       Limiter
	logger        logging.Logger
	maxUploadSize int64
}

// NewHTTPServer builds the server. limiter may be nil, which leaves the
// download route unthrottled.
func NewHTTPServer(a string, l logging.Logger, us UserService, fs FileService, limiter Limiter, maxUploadSize int64) *HTTPServer {
	return &HTTPServer{
		address:       a,
		logger:        l.With("module", "http_server"),
		users:         us,
		files:         fs,
		limiter:       limiter,
		maxUploadSize: maxUploadSize,
	}
}

// Router builds the gin engine with every route registered.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", common.AuthorizationHeaderName},
		ExposeHeaders:   []string{"Content-Disposition", "Content-Length", "Retry-After"},
		MaxAge:          12 * time.Hour,
	}))
	r.MaxMultipartMemory = s.maxUploadSize + multipartOverhead

	r.GET("/ping", s.ping)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", s.signup)
	authGroup.POST("/login", s.login)

	filesGroup := api.Group("/files")
	filesGroup.GET("/download/:token", s.rateLimitMiddleware(), s.download)

	private := filesGroup.Group("")
	private.Use(s.accessTokenMiddleware())
	private.POST("/upload", s.upload)
	private.POST("/share/:fileId", s.share)
	private.GET("/my-files", s.myFiles)

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
