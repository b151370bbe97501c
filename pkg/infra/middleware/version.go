package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
)

// VersionResponse is the body of the version endpoint.
type VersionResponse struct {
	Service      string `json:"service"`
	GitVersion   string `json:"git_version"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// VersionHandler reports the build information of service.
// With hideDetails only the git version is returned.
func VersionHandler(service string, hideDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := version.Get()
		resp := VersionResponse{Service: service, GitVersion: info.GitVersion}
		if !hideDetails {
			resp.GitCommit = info.GitCommit
			resp.GitTreeState = info.GitTreeState
			resp.BuildDate = info.BuildDate
			resp.GoVersion = info.GoVersion
			resp.Platform = info.Platform
		}
		c.JSON(http.StatusOK, resp)
	}
}
