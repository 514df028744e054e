// Command filehost-smoke drives a running file host through the full user flow:
// register, login, upload, list, download, verify. Every downloaded file is
// compared byte for byte with what was sent.
package main

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // matches the server's integrity digest
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"filehost/pkg/log"
	"filehost/pkg/models"
)

const (
	defaultServerURL   = "http://127.0.0.1:8080"
	defaultFileSize    = 1024
	defaultFileCount   = 3
	defaultRounds      = 1
	defaultParallel    = 1
	defaultHTTPTimeout = 2 * time.Minute
)

type config struct {
	serverURL   string
	fileSize    int
	fileCount   int
	rounds      int
	parallel    int
	httpTimeout time.Duration
}

// client wraps the file host HTTP API.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// doRequest performs an HTTP request and returns the body of a 2xx response.
func (c *client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.Header, fmt.Errorf("%s %s returned %s: %s", method, path, resp.Status, string(respBody))
	}
	return respBody, resp.Header, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	respBody, _, err := c.doRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *client) register(ctx context.Context, username, email, password string) (*models.UserResponse, error) {
	var user models.UserResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"username": username, "email": email, "password": password}, &user)
	return &user, err
}

func (c *client) login(ctx context.Context, username, password string) (*models.UserResponse, error) {
	var user models.UserResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &user)
	return &user, err
}

type payload struct {
	name    string
	content []byte
}

func (c *client) upload(ctx context.Context, userID int64, files []payload) ([]models.FileDescriptor, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("userId", strconv.FormatInt(userID, 10)); err != nil {
		return nil, err
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		header.Set("Content-Type", "text/plain")
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	respBody, _, err := c.doRequest(ctx, http.MethodPost, "/api/files/upload", body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var resp models.FileListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return resp.Files, nil
}

func (c *client) list(ctx context.Context, userID int64) ([]models.FileDescriptor, error) {
	var resp models.FileListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/files/user/"+strconv.FormatInt(userID, 10), nil, &resp)
	return resp.Files, err
}

func (c *client) download(ctx context.Context, storageName string) ([]byte, http.Header, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/files/download/"+storageName, nil, "")
}

func (c *client) verify(ctx context.Context, storageName string) (*models.Verification, error) {
	var v models.Verification
	err := c.doJSON(ctx, http.MethodGet, "/api/files/verify/"+storageName, nil, &v)
	return &v, err
}

// runner executes smoke rounds and tallies the results.
type runner struct {
	cfg    config
	client *client

	mu        sync.Mutex
	uploads   int
	downloads int
	bytes     int64
}

func newRunner(cfg config) *runner {
	return &runner{cfg: cfg, client: newClient(cfg.serverURL, cfg.httpTimeout)}
}

func (r *runner) run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		errs = make([]error, r.cfg.parallel)
	)
	for worker := 0; worker < r.cfg.parallel; worker++ {
		worker := worker
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < r.cfg.rounds; round++ {
				if err := r.round(ctx); err != nil {
					errs[worker] = fmt.Errorf("worker %d round %d: %w", worker, round, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// round registers a fresh user and pushes one batch through the whole API.
func (r *runner) round(ctx context.Context) error {
	suffix := uuid.NewString()[:8]
	username := "smoke-" + suffix
	password := "pw-" + suffix

	user, err := r.client.register(ctx, username, username+"@example.com", password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	logged, err := r.client.login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if logged.ID != user.ID {
		return fmt.Errorf("login returned user %d, registered %d", logged.ID, user.ID)
	}
	if _, err := r.client.login(ctx, username, password+"x"); err == nil {
		return errors.New("login with wrong password succeeded")
	}

	files := make([]payload, r.cfg.fileCount)
	for i := range files {
		content := make([]byte, r.cfg.fileSize)
		if _, err := rand.Read(content); err != nil {
			return err
		}
		files[i] = payload{name: fmt.Sprintf("smoke-%d.txt", i), content: content}
	}

	uploaded, err := r.client.upload(ctx, user.ID, files)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if len(uploaded) != len(files) {
		return fmt.Errorf("upload returned %d descriptors for %d files", len(uploaded), len(files))
	}
	r.tally(len(files), 0, 0)

	listed, err := r.client.list(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(listed) != len(files) {
		return fmt.Errorf("list returned %d files, expected %d", len(listed), len(files))
	}

	for i, d := range uploaded {
		if err := r.checkFile(ctx, d, files[i]); err != nil {
			return err
		}
	}

	log.Info().Int64("user_id", user.ID).Int("files", len(files)).Msg("Round passed")
	return nil
}

func (r *runner) checkFile(ctx context.Context, d models.FileDescriptor, sent payload) error {
	sum := md5.Sum(sent.content) //nolint:gosec // see import
	if want := hex.EncodeToString(sum[:]); d.Hash != want {
		return fmt.Errorf("%s: server hash %s, expected %s", d.StorageName, d.Hash, want)
	}

	data, header, err := r.client.download(ctx, d.StorageName)
	if err != nil {
		return fmt.Errorf("download %s: %w", d.StorageName, err)
	}
	if !bytes.Equal(data, sent.content) {
		return fmt.Errorf("download %s: content differs from upload", d.StorageName)
	}
	if !strings.Contains(header.Get("Content-Disposition"), sent.name) {
		return fmt.Errorf("download %s: Content-Disposition %q lacks %s",
			d.StorageName, header.Get("Content-Disposition"), sent.name)
	}
	r.tally(0, 1, int64(len(data)))

	v, err := r.client.verify(ctx, d.StorageName)
	if err != nil {
		return fmt.Errorf("verify %s: %w", d.StorageName, err)
	}
	if !v.Verified {
		return fmt.Errorf("verify %s: %s", d.StorageName, v.Reason)
	}
	return nil
}

func (r *runner) tally(uploads, downloads int, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads += uploads
	r.downloads += downloads
	r.bytes += n
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("filehost-smoke", flag.ContinueOnError)
	cfg := config{}
	fs.StringVar(&cfg.serverURL, "server", defaultServerURL, "File host base URL")
	fs.IntVar(&cfg.fileSize, "size", defaultFileSize, "Size of each generated file in bytes")
	fs.IntVar(&cfg.fileCount, "files", defaultFileCount, "Files per upload batch")
	fs.IntVar(&cfg.rounds, "rounds", defaultRounds, "Rounds per worker")
	fs.IntVar(&cfg.parallel, "parallel", defaultParallel, "Concurrent workers")
	fs.DurationVar(&cfg.httpTimeout, "timeout", defaultHTTPTimeout, "HTTP client timeout")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case cfg.fileSize <= 0:
		return cfg, errors.New("size must be positive")
	case cfg.fileCount <= 0:
		return cfg, errors.New("files must be positive")
	case cfg.rounds <= 0:
		return cfg, errors.New("rounds must be positive")
	case cfg.parallel <= 0:
		return cfg, errors.New("parallel must be positive")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	r := newRunner(cfg)
	start := time.Now()
	if err := r.run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Smoke test failed")
		os.Exit(1)
	}

	log.Info().
		Int("uploads", r.uploads).
		Int("downloads", r.downloads).
		Int64("bytes", r.bytes).
		Dur("elapsed", time.Since(start)).
		Msg("Smoke test passed")
}
