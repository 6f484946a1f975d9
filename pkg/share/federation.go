package share

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kevgathuku/server/internal/config"
	"go.uber.org/zap"
)

const defaultFederationEndpoint = "/ocs/v2.php/cloud/shares"

// Notifier delivers fire-and-forget share notifications to a peer
// server. Calls are synchronous with a bounded timeout and one automatic
// protocol downgrade retry (https -> http) when the peer has no TLS.
type Notifier struct {
	client    *http.Client
	endpoint  string
	allowHTTP bool
	logger    *zap.Logger
}

func NewNotifier(cfg *config.FederationConfig, logger *zap.Logger) *Notifier {
	endpoint := cfg.EndpointPath
	if endpoint == "" {
		endpoint = defaultFederationEndpoint
	}
	return &Notifier{
		client:    &http.Client{Timeout: cfg.ConnectTimeout},
		endpoint:  endpoint,
		allowHTTP: cfg.AllowHTTPFallback,
		logger:    logger.Named("federation"),
	}
}

type ocsResponse struct {
	OCS struct {
		Meta struct {
			StatusCode int `json:"statuscode"`
		} `json:"meta"`
	} `json:"ocs"`
}

// CreateShare announces a new federated share to the recipient's server.
func (n *Notifier) CreateShare(ctx context.Context, remote, token, name, owner, shareWith string, remoteID int64) error {
	fields := url.Values{
		"shareWith": {shareWith},
		"token":     {token},
		"name":      {name},
		"remoteId":  {strconv.FormatInt(remoteID, 10)},
		"owner":     {owner},
	}
	return n.post(ctx, remote, n.endpoint, fields)
}

// RevokeShare tells the recipient's server an existing federated share
// was removed.
func (n *Notifier) RevokeShare(ctx context.Context, remote, token string, remoteID int64) error {
	fields := url.Values{
		"token":  {token},
		"format": {"json"},
	}
	path := fmt.Sprintf("%s/%d/unshare", n.endpoint, remoteID)
	return n.post(ctx, remote, path, fields)
}

func (n *Notifier) post(ctx context.Context, remote, path string, fields url.Values) error {
	host := strings.TrimSuffix(stripScheme(remote), "/")

	err := n.tryServer(ctx, "https://"+host+path, fields)
	if err == nil {
		return nil
	}
	if n.allowHTTP {
		n.logger.Debug("https delivery failed, retrying over http",
			zap.String("remote", host), zap.Error(err))
		if err2 := n.tryServer(ctx, "http://"+host+path, fields); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, host, err)
}

func (n *Notifier) tryServer(ctx context.Context, endpoint string, fields url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?format=json",
		strings.NewReader(fields.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var status ocsResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("malformed status response: %v", err)
	}
	if code := status.OCS.Meta.StatusCode; code != 100 && code != 200 {
		return fmt.Errorf("peer rejected request with status %d", code)
	}
	return nil
}

func stripScheme(remote string) string {
	remote = strings.TrimPrefix(remote, "https://")
	remote = strings.TrimPrefix(remote, "http://")
	return remote
}

// SplitRemoteUser splits "user@host" into its parts. The host keeps any
// port but loses the scheme.
func SplitRemoteUser(id string) (user, remote string, err error) {
	at := strings.LastIndex(id, "@")
	if at < 1 || at == len(id)-1 {
		return "", "", violationf("invalid federated user id %q", id)
	}
	return id[:at], stripScheme(id[at+1:]), nil
}
