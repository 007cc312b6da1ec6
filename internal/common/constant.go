package common

const (
	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// UserIDContextKey is the gin context key holding the authenticated user id.
	UserIDContextKey = "userID"

	// DownloadPathPrefix is the path under which share tokens are redeemed.
	// Host and scheme are prepended by the HTTP layer.
	DownloadPathPrefix = "/api/files/download/"
)
