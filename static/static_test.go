// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package static

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestMapResolvesPlainPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")

	r := NewRoot(dir, "/static")
	got, err := r.Map("/index.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), got)
}

func TestMapRejectsDotDotEscape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRoot(dir, "/static")

	_, err := r.Map("../secret.txt")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestMapRejectsNulByte(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRoot(dir, "/static")

	_, err := r.Map("index.html\x00.png")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestMapRejectsDeeplyNestedEscape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRoot(dir, "/static")

	_, err := r.Map("a/b/../../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestServeHTTPRejectsNonGetMethods(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "index.html", "hi")
	r := NewRoot(dir, "/static")

	req := httptest.NewRequest(http.MethodPost, "/static/index.html", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeHTTPServesExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "hello world")
	r := NewRoot(dir, "/static")

	req := httptest.NewRequest(http.MethodGet, "/static/hello.txt", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestServeHTTPReturnsNotFoundForMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRoot(dir, "/static")

	req := httptest.NewRequest(http.MethodGet, "/static/ghost.txt", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPReturnsNotFoundForDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	r := NewRoot(dir, "/static")

	req := httptest.NewRequest(http.MethodGet, "/static/sub", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPRendersTemplateForConfiguredExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "greeting.tmpl", "hello {{.Name}}")

	r := NewRoot(dir, "/static")
	r.TemplateVars = map[string]string{"Name": "Rex"}
	r.TemplateExt = map[string]bool{".tmpl": true}

	req := httptest.NewRequest(http.MethodGet, "/static/greeting.tmpl", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello Rex", string(body))
}
