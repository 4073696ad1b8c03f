package corpus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL serves the Mozc OSS system dictionary files.
const DefaultBaseURL = "https://raw.githubusercontent.com/google/mozc/master/src/data/dictionary_oss/"

// DefaultFiles are the numbered system dictionary files shipped with Mozc.
func DefaultFiles() []string {
	files := make([]string, 10)
	for i := range files {
		files[i] = fmt.Sprintf("dictionary%02d.txt", i)
	}
	return files
}

// FetchOptions configures Fetch.
type FetchOptions struct {
	// BaseURL is joined with each file name. Empty means DefaultBaseURL.
	BaseURL string
	// Files to fetch. Nil means DefaultFiles.
	Files []string
	// Force re-downloads files that already exist.
	Force  bool
	Client *http.Client
	Logger zerolog.Logger
}

// Fetch downloads the baseline dictionary files missing from dir and returns
// the names it wrote. Files already present are left alone unless Force is set.
func Fetch(ctx context.Context, dir string, opts FetchOptions) ([]string, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	files := opts.Files
	if files == nil {
		files = DefaultFiles()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	log := opts.Logger

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	var fetched []string
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		dest := filepath.Join(dir, name)
		if !opts.Force {
			if _, err := os.Stat(dest); err == nil {
				log.Debug().Str("file", dest).Msg("baseline dictionary file present, not fetching")
				continue
			} else if !os.IsNotExist(err) {
				return fetched, err
			}
		}

		url := base + name
		log.Info().Str("url", url).Msg("downloading baseline dictionary file")
		n, err := download(ctx, client, url, dest)
		if err != nil {
			return fetched, err
		}
		log.Debug().Str("file", dest).Int64("bytes", n).Msg("baseline dictionary file written")
		fetched = append(fetched, name)
	}
	return fetched, nil
}

// download writes url to dest through a temporary file so an interrupted
// transfer never leaves a truncated dictionary behind.
func download(ctx context.Context, client *http.Client, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "mozcfilter")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}
