package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/teamcutter/vendr/internal/domain"
)

// Archives smaller than this are treated as truncated. This is a size
// heuristic, not an integrity check: an accepted file is "not empty", not
// "verified correct".
const minArchiveBytes = 1000

const defaultTimeout = 120 * time.Second

// TransportConfig describes one download transport. Both transports are
// built up front from explicit configs, so no process-global download
// settings exist and concurrent fetches cannot leak state into each other.
type TransportConfig struct {
	Timeout time.Duration

	// InsecureSkipVerify is on for the primary transport: the license
	// server fronts downloads with a self-signed certificate.
	InsecureSkipVerify bool

	// UseEnvProxy controls whether HTTP(S)_PROXY is honored. The fallback
	// transport goes direct, which sidesteps broken proxy environments.
	UseEnvProxy bool
}

type HTTPFetcher struct {
	primary      *http.Client
	fallback     *http.Client
	tmpDir       string
	showProgress bool
}

func New(tmpDir string) *HTTPFetcher {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &HTTPFetcher{
		primary: newClient(TransportConfig{
			Timeout:            defaultTimeout,
			InsecureSkipVerify: true,
			UseEnvProxy:        true,
		}),
		fallback: newClient(TransportConfig{
			Timeout: defaultTimeout,
		}),
		tmpDir:       tmpDir,
		showProgress: true,
	}
}

// NewWithConfigs is used by tests and callers that need custom transports.
func NewWithConfigs(tmpDir string, primary, fallback TransportConfig, showProgress bool) *HTTPFetcher {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &HTTPFetcher{
		primary:      newClient(primary),
		fallback:     newClient(fallback),
		tmpDir:       tmpDir,
		showProgress: showProgress,
	}
}

func newClient(cfg TransportConfig) *http.Client {
	transport := &http.Transport{}
	if cfg.UseEnvProxy {
		transport.Proxy = http.ProxyFromEnvironment
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Fetch downloads the granted archive to a temp file and returns its path.
// The caller owns the file and must remove it on every exit path. On any
// failure no partial file is left behind.
func (f *HTTPFetcher) Fetch(ctx context.Context, downloadURL string, osType domain.OSType) (string, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return "", domain.E(domain.KindInputInvalid, "gateway returned an empty download URL").
			WithRemedy("try again later; report this if it persists")
	}

	env := domain.EnvironmentInfo{OS: osType}
	dst := filepath.Join(f.tmpDir, fmt.Sprintf("vendr-%d%s", time.Now().UnixNano(), env.ArchiveExt()))

	primaryErr := f.download(ctx, f.primary, downloadURL, dst)
	if primaryErr != nil || validate(dst) != nil {
		// Delete the partial before retrying so the fallback starts clean.
		os.Remove(dst)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		fallbackErr := f.download(ctx, f.fallback, downloadURL, dst)
		if fallbackErr != nil || validate(dst) != nil {
			os.Remove(dst)
			return "", downloadFailed(primaryErr, fallbackErr)
		}
	}

	// Re-check even after a transport reported success.
	if err := validate(dst); err != nil {
		os.Remove(dst)
		return "", domain.Wrap(domain.KindInvalidDownload, "downloaded archive failed validation", err).
			WithRemedy("try again later; report this if it persists")
	}

	return dst, nil
}

func (f *HTTPFetcher) download(ctx context.Context, client *http.Client, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer file.Close()

	var w io.Writer = file
	if f.showProgress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "Downloading package")
		w = io.MultiWriter(file, bar)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

func validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() <= minArchiveBytes {
		return fmt.Errorf("archive too small: %d bytes", info.Size())
	}
	return nil
}

func downloadFailed(primaryErr, fallbackErr error) error {
	msg := "could not download the package archive"
	if fallbackErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, fallbackErr)
	} else if primaryErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, primaryErr)
	}
	return domain.E(domain.KindDownloadFailed, msg).WithRemedy(
		"1) check your network connection\n" +
			"2) check proxy and certificate settings in your environment\n" +
			"3) restart vendr and try again\n" +
			"4) contact support if the problem persists")
}
