package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/teamcutter/vendr/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Client asks the license gateway whether this machine may download the
// package, and for which URL.
type Client struct {
	client *http.Client
}

func New() *Client {
	return &Client{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// NewWithClient is used by tests to inject a shorter timeout.
func NewWithClient(client *http.Client) *Client {
	return &Client{client: client}
}

type permissionRequest struct {
	MachineCode string `json:"machine_code"`
	OSType      string `json:"os_type"`
}

type permissionResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    *struct {
		PackageName string `json:"package_name"`
		DownloadURL string `json:"download_url"`
		Version     string `json:"version"`
	} `json:"data"`
}

// RequestPermission posts the machine code and OS type to the gateway and
// maps the response to a Grant or a typed denial. Any non-200 status is a
// failure; the gateway only ever answers 200 on the happy path.
func (c *Client) RequestPermission(ctx context.Context, req domain.InstallRequest) (*domain.Grant, error) {
	body, err := json.Marshal(permissionRequest{
		MachineCode: req.MachineCode,
		OSType:      string(req.OSType),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, domain.Wrap(domain.KindInputInvalid, "invalid gateway URL", err).
			WithRemedy("check gateway_url in the config file")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "vendr")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, domain.E(domain.KindServerError,
			fmt.Sprintf("license server error (status %d)", resp.StatusCode)).
			WithRemedy("the license server is having trouble; try again later")
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.E(domain.KindServiceNotFound, "license service not found").
			WithRemedy("check gateway_url in the config file, or update vendr")
	case resp.StatusCode != http.StatusOK:
		return nil, domain.E(domain.KindUnexpectedStatus,
			fmt.Sprintf("unexpected gateway status %d", resp.StatusCode)).
			WithRemedy("try again later; report this if it persists")
	}

	var pr permissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, domain.Wrap(domain.KindMalformedResponse, "cannot parse gateway response", err).
			WithRemedy("try again later; report this if it persists")
	}

	if !pr.Success {
		return nil, denialError(pr.Code, req.MachineCode)
	}

	if pr.Data == nil {
		return nil, domain.E(domain.KindMalformedResponse, "gateway response is missing grant data").
			WithRemedy("try again later; report this if it persists")
	}

	return &domain.Grant{
		PackageName: pr.Data.PackageName,
		DownloadURL: pr.Data.DownloadURL,
		Version:     pr.Data.Version,
	}, nil
}

func classifyTransportError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return domain.Wrap(domain.KindNetworkTimeout, "license server did not answer in time", err).
			WithRemedy("check your network connection and try again")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.KindNetworkTimeout, "license server did not answer in time", err).
			WithRemedy("check your network connection and try again")
	}
	return domain.Wrap(domain.KindNetworkUnavailable, "cannot reach license server", err).
		WithRemedy("check your network connection and try again")
}

func denialError(code, machineCode string) error {
	switch code {
	case domain.ReasonUserNotRegistered:
		return domain.Denied(code,
			fmt.Sprintf("this machine is not registered (machine code %s)", machineCode),
			fmt.Sprintf("register machine code %s with your vendor account", machineCode))
	case domain.ReasonAccountDisabled:
		return domain.Denied(code, "your account has been disabled",
			"contact support to restore access")
	case domain.ReasonQuotaExceeded:
		return domain.Denied(code, "download quota exceeded",
			"wait for the quota to reset or upgrade your plan")
	case domain.ReasonInvalidOSType:
		return domain.Denied(code, "gateway rejected the os type",
			"this is a vendr bug; please report it")
	default:
		return domain.Denied(code, "the license server rejected the request",
			"try again later")
	}
}
