package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"filehost/pkg/accounts"
	"filehost/pkg/metadata"
	"filehost/pkg/models"
	"filehost/pkg/retrieval"
	"filehost/pkg/store"
	"filehost/pkg/store/disk"
	"filehost/pkg/upload"
)

const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

type filePart struct {
	name     string
	mimeType string
	content  []byte
}

// ServerTestSuite runs requests through the full router against SQLite and a temp upload dir.
type ServerTestSuite struct {
	suite.Suite
	tempDir string
	meta    *metadata.Store
	content *disk.Store
	server  *Server
}

func (s *ServerTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "server-test-*")
	s.Require().NoError(err)

	s.meta, err = metadata.Open(context.Background(), metadata.Options{
		Driver: metadata.DriverSQLite,
		DSN:    filepath.Join(s.tempDir, "filehost.db"),
	})
	s.Require().NoError(err)

	s.content = disk.New(filepath.Join(s.tempDir, "uploads"), 1024)
	s.server = s.newServer(1024, 3)
}

func (s *ServerTestSuite) TearDownTest() {
	s.meta.Close()
	os.RemoveAll(s.tempDir)
}

func (s *ServerTestSuite) newServer(maxFileSize int64, maxFileCount int) *Server {
	return New(Options{
		Version:      "test-v1.0.0",
		MaxFileSize:  maxFileSize,
		MaxFileCount: maxFileCount,
		Accounts:     accounts.New(s.meta, bcrypt.MinCost),
		Uploads:      upload.New(s.meta, s.content, store.NewPolicy(maxFileSize, maxFileCount)),
		Files:        retrieval.New(s.meta, s.content),
		Database:     s.meta,
		Storage:      s.content,
	})
}

func (s *ServerTestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) postJSON(path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *ServerTestSuite) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *ServerTestSuite) uploadRequest(userID string, parts ...filePart) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if userID != "" {
		s.Require().NoError(writer.WriteField(fieldUserID, userID))
	}
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		header.Set("Content-Type", p.mimeType)
		part, err := writer.CreatePart(header)
		s.Require().NoError(err)
		_, err = part.Write(p.content)
		s.Require().NoError(err)
	}
	s.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func (s *ServerTestSuite) errorMessage(rec *httptest.ResponseRecorder) string {
	var response map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response), rec.Body.String())
	return response["error"]
}

func (s *ServerTestSuite) registerAlice() {
	rec := s.postJSON("/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw1",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *ServerTestSuite) storedFiles() []os.DirEntry {
	entries, err := os.ReadDir(s.content.Dir())
	if os.IsNotExist(err) {
		return nil
	}
	s.Require().NoError(err)
	return entries
}

func (s *ServerTestSuite) TestAliceScenario() {
	rec := s.postJSON("/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw1",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var user models.UserResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &user))
	s.Equal(models.UserResponse{ID: 1, Username: "alice", Email: "alice@x.com"}, user)
	s.NotContains(rec.Body.String(), "password")

	rec = s.postJSON("/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw1",
	})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("user already exists", s.errorMessage(rec))

	rec = s.postJSON("/api/auth/login", map[string]string{"username": "alice", "password": "pw1"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &user))
	s.Equal(int64(1), user.ID)

	rec = s.postJSON("/api/auth/login", map[string]string{"username": "alice", "password": "wrong"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("invalid credentials", s.errorMessage(rec))

	rec = s.do(s.uploadRequest("1", filePart{"hello.txt", "text/plain", []byte("hello")}))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var uploaded models.FileListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &uploaded))
	s.Require().Len(uploaded.Files, 1)
	s.Equal(helloMD5, uploaded.Files[0].Hash)
	s.Equal(int64(5), uploaded.Files[0].Size)
	s.Equal("hello.txt", uploaded.Files[0].OriginalName)

	rec = s.get("/api/files/user/1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed models.FileListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.Require().Len(listed.Files, 1)
	s.Equal(uploaded.Files[0].ID, listed.Files[0].ID)
	s.Equal(uploaded.Files[0].StorageName, listed.Files[0].StorageName)
	s.Equal(uploaded.Files[0].Hash, listed.Files[0].Hash)

	rec = s.get("/api/files/download/" + uploaded.Files[0].StorageName)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("hello", rec.Body.String())
	s.Equal("text/plain", rec.Header().Get("Content-Type"))
	s.Equal("5", rec.Header().Get("Content-Length"))
	s.Contains(rec.Header().Get("Content-Disposition"), "attachment")
	s.Contains(rec.Header().Get("Content-Disposition"), "hello.txt")
}

func (s *ServerTestSuite) TestRegisterInvalidBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgInvalidBody, s.errorMessage(rec))
}

func (s *ServerTestSuite) TestRegisterMissingFields() {
	rec := s.postJSON("/api/auth/register", map[string]string{"username": "alice"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestLoginUnknownUser() {
	rec := s.postJSON("/api/auth/login", map[string]string{"username": "ghost", "password": "pw"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("invalid credentials", s.errorMessage(rec))
}

func (s *ServerTestSuite) TestUploadMissingUserID() {
	rec := s.do(s.uploadRequest("", filePart{"a.txt", "text/plain", []byte("a")}))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(upload.ReasonUserIDRequired, s.errorMessage(rec))
}

func (s *ServerTestSuite) TestUploadUnknownUser() {
	rec := s.do(s.uploadRequest("7", filePart{"a.txt", "text/plain", []byte("a")}))
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("user not found", s.errorMessage(rec))
	s.Empty(s.storedFiles())
}

func (s *ServerTestSuite) TestUploadNoFiles() {
	s.registerAlice()

	rec := s.do(s.uploadRequest("1"))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(store.ReasonNoFiles, s.errorMessage(rec))
}

func (s *ServerTestSuite) TestUploadNotMultipart() {
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader(`{"userId":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(store.ReasonNoFiles, s.errorMessage(rec))
}

func (s *ServerTestSuite) TestUploadDisallowedTypeRejectsBatch() {
	s.registerAlice()

	rec := s.do(s.uploadRequest("1",
		filePart{"ok.txt", "text/plain", []byte("fine")},
		filePart{"script.sh", "application/x-sh", []byte("#!/bin/sh")},
	))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.storedFiles())

	rec = s.get("/api/files/user/1")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"files":[]}`, rec.Body.String())
}

func (s *ServerTestSuite) TestUploadMimeMismatch() {
	s.registerAlice()

	rec := s.do(s.uploadRequest("1", filePart{"photo.png", "text/plain", []byte("x")}))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.storedFiles())
}

func (s *ServerTestSuite) TestUploadTooManyFiles() {
	s.registerAlice()

	parts := make([]filePart, 0, 4)
	for _, name := range []string{"1.txt", "2.txt", "3.txt", "4.txt"} {
		parts = append(parts, filePart{name, "text/plain", []byte(name)})
	}
	rec := s.do(s.uploadRequest("1", parts...))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.storedFiles())
}

func (s *ServerTestSuite) TestUploadOversizedFile() {
	s.registerAlice()

	rec := s.do(s.uploadRequest("1", filePart{"big.txt", "text/plain", bytes.Repeat([]byte("x"), 2048)}))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.storedFiles())
}

func (s *ServerTestSuite) TestUploadBodyTooLarge() {
	s.registerAlice()
	s.server = s.newServer(16, 1)

	rec := s.do(s.uploadRequest("1", filePart{"huge.txt", "text/plain", bytes.Repeat([]byte("x"), 2<<20)}))
	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
	s.Empty(s.storedFiles())
}

func (s *ServerTestSuite) TestListFilesNewestFirst() {
	s.registerAlice()

	rec := s.do(s.uploadRequest("1", filePart{"first.txt", "text/plain", []byte("1")}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	rec = s.do(s.uploadRequest("1", filePart{"second.txt", "text/plain", []byte("2")}))
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.get("/api/files/user/1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed models.FileListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.Require().Len(listed.Files, 2)
	s.Equal("second.txt", listed.Files[0].OriginalName)
	s.Equal("first.txt", listed.Files[1].OriginalName)
}

func (s *ServerTestSuite) TestListFilesErrors() {
	rec := s.get("/api/files/user/abc")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.get("/api/files/user/5")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("user not found", s.errorMessage(rec))
}

func (s *ServerTestSuite) uploadHello() models.FileDescriptor {
	s.registerAlice()
	rec := s.do(s.uploadRequest("1", filePart{"hello.txt", "text/plain", []byte("hello")}))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var uploaded models.FileListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &uploaded))
	return uploaded.Files[0]
}

func (s *ServerTestSuite) TestDownloadNotFoundVersusMissingContent() {
	stored := s.uploadHello()

	rec := s.get("/api/files/download/files-0-0.txt")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("file not found", s.errorMessage(rec))

	s.Require().NoError(os.Remove(s.content.Path(stored.StorageName)))
	rec = s.get("/api/files/download/" + stored.StorageName)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("file content missing", s.errorMessage(rec))
}

func (s *ServerTestSuite) TestDownloadInvalidName() {
	rec := s.get("/api/files/download/..")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestFileInfo() {
	stored := s.uploadHello()

	rec := s.get("/api/files/info/" + stored.StorageName)
	s.Require().Equal(http.StatusOK, rec.Code)
	var info models.FileDescriptor
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &info))
	s.Equal(stored.ID, info.ID)
	s.Equal(helloMD5, info.Hash)

	rec = s.get("/api/files/info/nope.txt")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerTestSuite) TestVerifyFile() {
	stored := s.uploadHello()

	rec := s.get("/api/files/verify/" + stored.StorageName)
	s.Require().Equal(http.StatusOK, rec.Code)
	var result models.Verification
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.True(result.Verified)

	s.Require().NoError(os.WriteFile(s.content.Path(stored.StorageName), []byte("tampered"), 0600))
	rec = s.get("/api/files/verify/" + stored.StorageName)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.False(result.Verified)
	s.Equal(helloMD5, result.Expected)
	s.NotEqual(helloMD5, result.Actual)
}

func (s *ServerTestSuite) TestHealth() {
	s.Require().NoError(s.content.EnsureDir())

	rec := s.get("/health")
	s.Require().Equal(http.StatusOK, rec.Code)
	var health models.HealthResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &health))
	s.Equal("ok", health.Status)
	s.Equal("ok", health.Database)
	s.Equal("test-v1.0.0", health.Version)
	s.Require().NotNil(health.Storage)
	s.Positive(health.Storage.Total)
}

func (s *ServerTestSuite) TestHealthDatabaseDown() {
	s.meta.Close()

	rec := s.get("/health")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	var health models.HealthResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &health))
	s.Equal("degraded", health.Status)
	s.Equal("unavailable", health.Database)
}

func (s *ServerTestSuite) TestSwagger() {
	rec := s.get("/swagger.yml")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "/api/files/upload")

	rec = s.get("/")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")
	s.Contains(rec.Body.String(), "File Host API Documentation")
	s.Contains(rec.Body.String(), "/swagger.yml")
}

func (s *ServerTestSuite) TestRequestIDHeader() {
	rec := s.get("/health")
	s.NotEmpty(rec.Header().Get("X-Request-Id"))
}

func (s *ServerTestSuite) TestBodyLimitString() {
	s.Equal("1K", bodyLimitString(1))
	s.Equal("1K", bodyLimitString(1024))
	s.Equal("2K", bodyLimitString(1025))
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
