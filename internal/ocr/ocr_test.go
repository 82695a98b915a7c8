package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []call
	stdout string
	err    error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: append([]string(nil), args...)})
	s.mu.Unlock()
	if name == "magick" {
		if err := os.WriteFile(args[len(args)-1], []byte("png"), 0o600); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if s.err != nil {
		return nil, []byte("boom"), s.err
	}
	return []byte(s.stdout), nil, nil
}

type fixedEngine struct {
	text string
	err  error
}

func (f fixedEngine) Recognize(_ context.Context, _ Image, _ string, report func(float64)) (string, error) {
	report(0.5)
	return f.text, f.err
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func TestCLIEngineRunsTesseract(t *testing.T) {
	r := &stubRunner{stdout: "DESAPARECIDO\nNome: Ana"}
	e := NewCLIEngineWithRunner(CLIConfig{TessdataDir: "/data"}, r, nil)

	txt, err := e.Recognize(context.Background(), Image{Filename: "cartaz.png", Data: pngMagic}, "por", func(float64) {})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if txt != r.stdout {
		t.Errorf("text = %q", txt)
	}
	if len(r.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(r.calls))
	}
	c := r.calls[0]
	if c.name != "tesseract" {
		t.Errorf("binary = %q", c.name)
	}
	got := strings.Join(c.args[1:], " ")
	if got != "stdout -l por --tessdata-dir /data" {
		t.Errorf("args = %q", got)
	}
	if filepath.Ext(c.args[0]) != ".png" {
		t.Errorf("input path = %q", c.args[0])
	}
}

func TestCLIEngineSniffsExtension(t *testing.T) {
	r := &stubRunner{stdout: "texto"}
	e := NewCLIEngineWithRunner(CLIConfig{}, r, nil)
	if _, err := e.Recognize(context.Background(), Image{Filename: "blob", Data: pngMagic}, "por", func(float64) {}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if filepath.Ext(r.calls[0].args[0]) != ".png" {
		t.Errorf("input path = %q", r.calls[0].args[0])
	}
}

func TestCLIEngineConvertsHEIC(t *testing.T) {
	dir := t.TempDir()
	r := &stubRunner{stdout: "texto do cartaz"}
	e := NewCLIEngineWithRunner(CLIConfig{HeicConverter: "magick", ArtifactDir: dir}, r, nil)

	if _, err := e.Recognize(context.Background(), Image{Filename: "IMG_0001.HEIC", Data: []byte("heic-bytes")}, "por", func(float64) {}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(r.calls) != 2 || r.calls[0].name != "magick" || r.calls[1].name != "tesseract" {
		t.Fatalf("calls = %+v", r.calls)
	}
	if filepath.Dir(r.calls[1].args[0]) != dir {
		t.Errorf("tesseract input %q not in artifact dir", r.calls[1].args[0])
	}

	// second run reuses the cached conversion
	if _, err := e.Recognize(context.Background(), Image{Filename: "IMG_0001.HEIC", Data: []byte("heic-bytes")}, "por", func(float64) {}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(r.calls) != 3 || r.calls[2].name != "tesseract" {
		t.Fatalf("calls = %+v", r.calls)
	}
}

func TestCLIEngineRejectsUnknownType(t *testing.T) {
	e := NewCLIEngineWithRunner(CLIConfig{}, &stubRunner{}, nil)
	if _, err := e.Recognize(context.Background(), Image{Filename: "notes.txt", Data: []byte("plain text")}, "por", func(float64) {}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecognizerInsufficientText(t *testing.T) {
	rec := NewRecognizer(fixedEngine{text: " abc\n"}, "", nil)
	job := rec.Recognize(context.Background(), Image{Filename: "a.png", Data: pngMagic}, "")
	_, err := job.Wait()
	if !errors.Is(err, ErrInsufficientText) {
		t.Fatalf("err = %v, want ErrInsufficientText", err)
	}
	if !errors.Is(err, common.ErrRecognition) {
		t.Errorf("err = %v does not wrap ErrRecognition", err)
	}
}

func TestRecognizerEngineFailure(t *testing.T) {
	rec := NewRecognizer(fixedEngine{err: errors.New("tesseract missing")}, "por", nil)
	_, err := rec.Recognize(context.Background(), Image{Data: pngMagic}, "").Wait()
	if !errors.Is(err, common.ErrRecognition) || errors.Is(err, ErrInsufficientText) {
		t.Fatalf("err = %v", err)
	}
}

func TestRecognizerProgressStream(t *testing.T) {
	rec := NewRecognizer(fixedEngine{text: "Desaparecida Maria, 12 anos"}, "por", nil)
	job := rec.Recognize(context.Background(), Image{Data: pngMagic}, "")

	var seen []float64
	for p := range job.Progress() {
		seen = append(seen, p)
	}
	res, err := job.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Text != "Desaparecida Maria, 12 anos" || res.Language != "por" {
		t.Errorf("result = %+v", res)
	}
	if len(seen) == 0 || seen[len(seen)-1] != 1 {
		t.Fatalf("progress = %v, want to end at 1", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not increasing: %v", seen)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := "DESAPARECIDO\r\n-----\r\nNome:\t\tAna   Sitoe  \n\n\n\nIdade: 12\f"
	want := "DESAPARECIDO\n\nNome: Ana Sitoe\n\nIdade: 12"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}
