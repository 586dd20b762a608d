// Package davtest runs an in-memory WebDAV server for tests.
package davtest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"golang.org/x/net/webdav"
)

const Prefix = "/dav"

type Server struct {
	*httptest.Server
	FS    webdav.FileSystem
	LS    webdav.LockSystem
	Users map[string]string
}

// New serves a WebDAV tree under /dav. When users is not empty every request must carry
// matching basic auth credentials.
func New(users map[string]string) *Server {
	fs := webdav.NewMemFS()
	ls := webdav.NewMemLS()
	s := &Server{FS: fs, LS: ls, Users: users}
	h := &webdav.Handler{
		Prefix:     Prefix,
		FileSystem: fs,
		LockSystem: ls,
	}
	mux := http.NewServeMux()
	mux.Handle(Prefix+"/", s.withAuth(h))
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.Users) > 0 {
			u, p, ok := r.BasicAuth()
			if !ok || s.Users[u] != p {
				w.Header().Set("WWW-Authenticate", `Basic realm="dav"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Mkdir creates a folder, path relative to /dav.
func (s *Server) Mkdir(name string) error {
	return s.FS.Mkdir(context.Background(), name, 0755)
}

// WriteFile creates or replaces a file, path relative to /dav.
func (s *Server) WriteFile(name string, data []byte) error {
	f, err := s.FS.OpenFile(context.Background(), name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a file, path relative to /dav.
func (s *Server) ReadFile(name string) ([]byte, error) {
	f, err := s.FS.OpenFile(context.Background(), name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// URL returns the http url of a path relative to /dav.
func (s *Server) URL(name string) string {
	return s.Server.URL + Prefix + "/" + strings.TrimPrefix(name, "/")
}
