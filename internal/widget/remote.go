package widget

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"dday/internal/config"
	appLog "dday/internal/log"
)

// RemoteReloader signals a widget host running in another process. It is
// what one-shot CLI commands hand to the snapshot synchronizer.
//
// Reload is fire-and-forget: an unreachable host is logged at debug level
// because the host re-reads the snapshot on its own schedule anyway.
type RemoteReloader struct {
	client *resty.Client
}

func NewRemoteReloader(baseURL string, auth *config.BasicAuthConfig) *RemoteReloader {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(2 * time.Second)
	if auth != nil && auth.Username != "" && auth.Password != "" {
		c.SetBasicAuth(auth.Username, auth.Password)
	}
	return &RemoteReloader{client: c}
}

func (r *RemoteReloader) ReloadAllTimelines() {
	_ = r.post(context.Background(), "/api/reload")
}

func (r *RemoteReloader) ReloadTimelines(kind string) {
	_ = r.post(context.Background(), "/api/reload/"+url.PathEscape(kind))
}

func (r *RemoteReloader) post(ctx context.Context, path string) error {
	resp, err := r.client.R().SetContext(ctx).Post(path)
	if err != nil {
		appLog.Debug("widget host not reachable; reload skipped", "path", path, "error", err)
		return err
	}
	if resp.IsError() {
		err := fmt.Errorf("widget reload %s: status %d", path, resp.StatusCode())
		appLog.Warn("widget host rejected reload", "path", path, "status", resp.StatusCode())
		return err
	}
	return nil
}
