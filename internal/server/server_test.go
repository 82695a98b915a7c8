package server

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/geocode"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
	"github.com/joseph-ayodele/missing-persons-intake/internal/location"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
	"github.com/joseph-ayodele/missing-persons-intake/internal/storage"
)

func ptr(s string) *string { return &s }

type echoEngine struct{}

func (echoEngine) Recognize(_ context.Context, img ocr.Image, _ string, report func(float64)) (string, error) {
	report(0.5)
	return string(img.Data), nil
}

type fixedExtractor struct{ fields llm.ExtractedFields }

func (f fixedExtractor) Extract(context.Context, string) (llm.ExtractedFields, error) {
	return f.fields, nil
}

type noGeocoder struct{}

func (noGeocoder) Geocode(context.Context, string) (entity.Coordinate, error) {
	return entity.Coordinate{}, geocode.ErrNoCandidates
}

type memStore struct {
	mu      sync.Mutex
	reports []entity.Report
}

func (m *memStore) CreateReport(_ context.Context, r entity.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

type harness struct {
	client   *Client
	sessions *Sessions
	store    *memStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	uploader, err := storage.NewLocalUploader(t.TempDir(), "http://localhost:8081/uploads/missing", logger)
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{}
	extractor := fixedExtractor{fields: llm.ExtractedFields{
		Name:         ptr("Ana Maria"),
		Description:  ptr("Vestido vermelho"),
		Category:     ptr("Adulto"),
		ContactPhone: ptr("841234567"),
		Location:     ptr("Maputo"),
	}}
	resolver := location.NewResolver(noGeocoder{}, nil, location.Config{Timeout: time.Second}, logger)
	factory := func(string) *pipeline.Orchestrator {
		return pipeline.New(ocr.NewRecognizer(echoEngine{}, "por", logger), extractor, resolver, uploader, store,
			pipeline.WithLogger(logger))
	}
	sessions := NewSessions(factory, time.Hour, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(ServerOptions(logger)...)
	RegisterIntakeServiceServer(srv, NewIntakeService(sessions, logger))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		sessions.CloseAll()
	})
	return &harness{client: NewClient(conn), sessions: sessions, store: store}
}

func (h *harness) call(t *testing.T, method string, fields map[string]any) *structpb.Struct {
	t.Helper()
	out, err := h.client.Call(context.Background(), method, fields)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return out
}

func draftField(out *structpb.Struct, key string) string {
	return out.GetFields()["draft"].GetStructValue().GetFields()[key].GetStringValue()
}

func statusState(out *structpb.Struct) string {
	return out.GetFields()["status"].GetStructValue().GetFields()["state"].GetStringValue()
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("code = %v, want %v (err: %v)", status.Code(err), code, err)
	}
}

func TestPosterToSubmittedReport(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, MethodCreateSession, nil)
	id := out.GetFields()["session_id"].GetStringValue()
	if id == "" {
		t.Fatal("missing session_id")
	}
	if got := len(out.GetFields()["missing_fields"].GetListValue().GetValues()); got != 5 {
		t.Errorf("fresh draft missing fields = %d, want 5", got)
	}

	img := base64.StdEncoding.EncodeToString([]byte("DESAPARECIDA Ana Maria"))
	h.call(t, MethodUploadPoster, map[string]any{"session_id": id, "image_base64": img, "filename": "poster.jpg"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		out = h.call(t, MethodGetDraft, map[string]any{"session_id": id})
		if statusState(out) == "IDLE" && draftField(out, "name") == "Ana Maria" &&
			out.GetFields()["draft"].GetStructValue().GetFields()["coordinates"] != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline did not settle: %v", out)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := draftField(out, "location_manual_text"); got != "Maputo" {
		t.Errorf("location_manual_text = %q", got)
	}
	if n := len(out.GetFields()["missing_fields"].GetListValue().GetValues()); n != 0 {
		t.Errorf("missing_fields = %v, want none", out.GetFields()["missing_fields"])
	}

	out = h.call(t, MethodSubmit, map[string]any{"session_id": id, "reporter_id": uuid.NewString()})
	if out.GetFields()["report_id"].GetStringValue() == "" {
		t.Error("missing report_id")
	}
	if url := out.GetFields()["photo_url"].GetStringValue(); !strings.HasSuffix(url, ".jpg") {
		t.Errorf("photo_url = %q", url)
	}
	if draftField(out, "name") != "" {
		t.Error("draft should reset after submit")
	}
	if h.store.Len() != 1 {
		t.Errorf("stored reports = %d, want 1", h.store.Len())
	}
}

func TestManualEditsAndLocation(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()

	out := h.call(t, MethodEditFields, map[string]any{
		"session_id": id,
		"fields":     map[string]any{"name": "João", "gender": "m", "age": "12"},
	})
	if draftField(out, "name") != "João" || draftField(out, "gender") != "Masculino" || draftField(out, "age") != "12" {
		t.Errorf("unexpected draft: %v", out.GetFields()["draft"])
	}

	_, err := h.client.Call(context.Background(), MethodEditFields, map[string]any{
		"session_id": id, "fields": map[string]any{"gender": "alien"},
	})
	wantCode(t, err, codes.InvalidArgument)

	h.call(t, MethodSelectLocation, map[string]any{"session_id": id, "preset": "Beira"})
	deadline := time.Now().Add(2 * time.Second)
	for {
		out = h.call(t, MethodGetDraft, map[string]any{"session_id": id})
		coords := out.GetFields()["draft"].GetStructValue().GetFields()["coordinates"].GetStructValue()
		if coords != nil && coords.GetFields()["latitude"].GetNumberValue() != 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("location did not resolve")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err = h.client.Call(context.Background(), MethodSelectLocation, map[string]any{"session_id": id, "preset": "Lisboa"})
	wantCode(t, err, codes.InvalidArgument)

	out = h.call(t, MethodSetManualLocation, map[string]any{"session_id": id, "text": "Xai-Xai"})
	if draftField(out, "location_manual_text") != "Xai-Xai" {
		t.Errorf("manual text not stored: %v", out.GetFields()["draft"])
	}
}

func TestContactsEditing(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()

	_, err := h.client.Call(context.Background(), MethodEditContact, map[string]any{"session_id": id, "action": "remove", "index": 0})
	wantCode(t, err, codes.FailedPrecondition)

	h.call(t, MethodEditContact, map[string]any{"session_id": id, "action": "add"})
	out := h.call(t, MethodEditContact, map[string]any{"session_id": id, "action": "set", "index": 1, "nome": "Rosa", "contacto": "829999999"})
	contacts := out.GetFields()["draft"].GetStructValue().GetFields()["additional_contacts"].GetListValue().GetValues()
	if len(contacts) != 2 || contacts[1].GetStructValue().GetFields()["nome"].GetStringValue() != "Rosa" {
		t.Errorf("contacts = %v", contacts)
	}

	_, err = h.client.Call(context.Background(), MethodEditContact, map[string]any{"session_id": id, "action": "set", "index": 7})
	wantCode(t, err, codes.InvalidArgument)
	_, err = h.client.Call(context.Background(), MethodEditContact, map[string]any{"session_id": id, "action": "swap"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestEditContactRequiresIndex(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()
	h.call(t, MethodEditContact, map[string]any{"session_id": id, "action": "add"})
	h.call(t, MethodEditContact, map[string]any{"session_id": id, "action": "set", "index": 0, "nome": "Rosa"})

	for _, req := range []map[string]any{
		{"session_id": id, "action": "set", "nome": "Tomas"},
		{"session_id": id, "action": "remove"},
		{"session_id": id, "action": "remove", "index": 0.5},
		{"session_id": id, "action": "remove", "index": -1},
		{"session_id": id, "action": "remove", "index": "0"},
	} {
		_, err := h.client.Call(context.Background(), MethodEditContact, req)
		wantCode(t, err, codes.InvalidArgument)
	}

	out := h.call(t, MethodGetDraft, map[string]any{"session_id": id})
	contacts := out.GetFields()["draft"].GetStructValue().GetFields()["additional_contacts"].GetListValue().GetValues()
	if len(contacts) != 2 || contacts[0].GetStructValue().GetFields()["nome"].GetStringValue() != "Rosa" {
		t.Errorf("contacts changed by rejected calls: %v", contacts)
	}
}

func TestSubmitErrors(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()

	_, err := h.client.Call(context.Background(), MethodSubmit, map[string]any{"session_id": id, "reporter_id": "nope"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = h.client.Call(context.Background(), MethodSubmit, map[string]any{"session_id": id, "reporter_id": uuid.NewString()})
	wantCode(t, err, codes.InvalidArgument)
	if !strings.Contains(status.Convert(err).Message(), "photo") {
		t.Errorf("message should list missing fields: %v", err)
	}
	if h.store.Len() != 0 {
		t.Error("nothing should be stored")
	}
}

func TestSessionErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Call(context.Background(), MethodGetDraft, nil)
	wantCode(t, err, codes.InvalidArgument)

	_, err = h.client.Call(context.Background(), MethodGetDraft, map[string]any{"session_id": "missing"})
	wantCode(t, err, codes.NotFound)

	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()
	h.call(t, MethodCloseSession, map[string]any{"session_id": id})
	_, err = h.client.Call(context.Background(), MethodGetDraft, map[string]any{"session_id": id})
	wantCode(t, err, codes.NotFound)

	_, err = h.client.Call(context.Background(), MethodUploadPoster, map[string]any{"session_id": "x", "image_base64": "%%%"})
	wantCode(t, err, codes.NotFound)
}

func TestUploadPosterRejectsBadImage(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()

	_, err := h.client.Call(context.Background(), MethodUploadPoster, map[string]any{"session_id": id})
	wantCode(t, err, codes.InvalidArgument)
	_, err = h.client.Call(context.Background(), MethodUploadPoster, map[string]any{"session_id": id, "image_base64": "%%%"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestSetPhotoAcceptsLargePoster(t *testing.T) {
	h := newHarness(t)
	id := h.call(t, MethodCreateSession, nil).GetFields()["session_id"].GetStringValue()

	data := make([]byte, 5<<20)
	copy(data, "\x89PNG\r\n\x1a\n")
	img := base64.StdEncoding.EncodeToString(data)

	out := h.call(t, MethodUploadPoster, map[string]any{"session_id": id, "image_base64": img, "filename": "poster.png", "analyze": false})
	photo := out.GetFields()["draft"].GetStructValue().GetFields()["photo"].GetStructValue()
	if photo.GetFields()["filename"].GetStringValue() != "poster.png" {
		t.Errorf("photo not set: %v", out.GetFields()["draft"])
	}
}

func TestSessionsExpireWhenIdle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(string) *pipeline.Orchestrator {
		return pipeline.New(nil, nil, nil, nil, nil, pipeline.WithLogger(logger))
	}
	s := NewSessions(factory, time.Minute, logger)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a, _ := s.Create()
	b, _ := s.Create()

	now = now.Add(45 * time.Second)
	if _, err := s.Get(a); err != nil {
		t.Fatalf("a should still be live: %v", err)
	}

	now = now.Add(30 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := s.Get(b); err == nil {
		t.Error("b should have expired")
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(a); err == nil {
		t.Error("a should expire on access")
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestOpsRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	r := NewOpsRouter(OpsConfig{HealthCheck: func(context.Context) error {
		if healthy {
			return nil
		}
		return io.ErrUnexpectedEOF
	}})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	if w := get("/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
	healthy = false
	if w := get("/healthz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy healthz = %d", w.Code)
	}
	w := get("/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "intake_active_sessions") {
		t.Errorf("metrics = %d", w.Code)
	}
}
