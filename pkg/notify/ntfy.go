// Package notify delivers short text notes to an ntfy topic.
package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/security"
)

const (
	DefaultBaseURL = "https://ntfy.sh"
	DefaultTitle   = "Sentient-AI"
)

var ErrMissingTopic = errors.New("missing ntfy topic (set NTFY_TOPIC)")

// Notifier sends a note somewhere a human will see it.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Options struct {
	BaseURL string
	Topic   string
	Title   string
	Client  *http.Client
	// AllowInsecure permits http and local base URLs (self-hosted ntfy, tests).
	AllowInsecure bool
}

// Ntfy posts notes to <BaseURL>/<Topic>.
type Ntfy struct {
	endpoint string
	title    string
	client   *http.Client
}

var _ Notifier = (*Ntfy)(nil)

func NewNtfy(opts Options) (*Ntfy, error) {
	topic := strings.Trim(strings.TrimSpace(opts.Topic), "/")
	if topic == "" {
		return nil, ErrMissingTopic
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := security.ParseOutboundURL(base, security.OutboundURLOptions{
		AllowHTTP:          opts.AllowInsecure,
		AllowLocalNetworks: opts.AllowInsecure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ntfy base url")
	}

	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Ntfy{
		endpoint: strings.TrimRight(u.String(), "/") + "/" + url.PathEscape(topic),
		title:    title,
		client:   client,
	}, nil
}

func (n *Ntfy) Endpoint() string {
	return n.endpoint
}

// Send performs exactly one POST with text as the plain-text body. There is no retry.
func (n *Ntfy) Send(ctx context.Context, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(text))
	if err != nil {
		return errors.Wrap(err, "build ntfy request")
	}
	req.Header.Set("Title", n.title)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return engine.NewUpstreamError("ntfy publish", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return engine.NewUpstreamError("ntfy publish", errors.Errorf("unexpected status %s", resp.Status))
	}

	log.Debug().Str("endpoint", n.endpoint).Int("bytes", len(text)).Msg("ntfy note sent")
	return nil
}
