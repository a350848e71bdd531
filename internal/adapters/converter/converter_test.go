package converter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writePDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.pdf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMarkerConverter_Convert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/convert" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF-fake" {
			t.Errorf("pdf bytes not forwarded: %q", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"markdown": "# Lecture\n\n![](fig1.png)",
			"images": map[string]string{
				"fig1.png": base64.StdEncoding.EncodeToString([]byte("PNGDATA")),
			},
		})
	}))
	defer server.Close()

	conv := NewMarkerConverter(server.URL, 0)
	out, err := conv.Convert(context.Background(), writePDF(t, "%PDF-fake"))
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if out.Markdown != "# Lecture\n\n![](fig1.png)" {
		t.Errorf("unexpected markdown: %q", out.Markdown)
	}
	raw, ok := out.Images["fig1.png"].([]byte)
	if !ok || string(raw) != "PNGDATA" {
		t.Errorf("unexpected image payload: %#v", out.Images["fig1.png"])
	}
}

func TestMarkerConverter_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "layout model crashed"})
	}))
	defer server.Close()

	_, err := NewMarkerConverter(server.URL, 0).Convert(context.Background(), writePDF(t, "x"))
	if err == nil {
		t.Error("should error on service failure")
	}
}

func TestMarkerConverter_BadImageEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"markdown": "ok",
			"images":   map[string]string{"a.png": "***"},
		})
	}))
	defer server.Close()

	_, err := NewMarkerConverter(server.URL, 0).Convert(context.Background(), writePDF(t, "x"))
	if err == nil {
		t.Error("invalid base64 should fail the document")
	}
}

func TestMarkerConverter_MissingFile(t *testing.T) {
	conv := NewMarkerConverter("http://127.0.0.1:1", 0)
	if _, err := conv.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Error("missing input should error")
	}
}

func TestMarkerConverter_Warmup(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	conv := NewMarkerConverter(server.URL, 0)
	if err := conv.Warmup(context.Background()); err != nil {
		t.Errorf("healthy service should warm up: %v", err)
	}
	healthy = false
	if err := conv.Warmup(context.Background()); err == nil {
		t.Error("unhealthy service should fail warm-up")
	}
}

func TestMarkerConverter_StartServiceMissingScript(t *testing.T) {
	conv := NewMarkerConverter("", 0)
	if _, err := conv.StartService(context.Background(), filepath.Join(t.TempDir(), "service.py")); err == nil {
		t.Error("missing script should error")
	}
}

func TestPDFTextConverter_RejectsNonPDF(t *testing.T) {
	conv := NewPDFTextConverter()
	if err := conv.Warmup(context.Background()); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if _, err := conv.Convert(context.Background(), writePDF(t, "definitely not a pdf")); err == nil {
		t.Error("garbage input should error")
	}
}
