package app

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm/function"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm/openai"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.LoadConfig()
	cfg.Database.DSN = ""
	cfg.Cache.RedisURL = ""
	cfg.OCR.Engine = common.OCREngineCLI
	cfg.LLM.Provider = common.ProviderFunction
	cfg.LLM.FunctionURL = "http://127.0.0.1:0/extract"
	cfg.Storage.UploadDir = t.TempDir()
	return cfg
}

func TestInitInMemory(t *testing.T) {
	ctx := context.Background()
	a, err := Init(ctx, testConfig(t), Options{}, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Cleanup()

	if err := a.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	reps, err := a.Reports.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reps) != 0 {
		t.Fatalf("want empty store, got %d", len(reps))
	}
	if a.Uploader == nil {
		t.Fatal("uploader not configured")
	}

	orch := a.NewOrchestrator()
	defer orch.Close()
	if got := orch.Draft().Snapshot().Name; got != "" {
		t.Fatalf("fresh draft has name %q", got)
	}
}

func TestInitNoUpload(t *testing.T) {
	a, err := Init(context.Background(), testConfig(t), Options{NoUpload: true}, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Cleanup()
	if a.Uploader != nil {
		t.Fatal("uploader should be skipped")
	}
}

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor(common.LLMConfig{Provider: common.ProviderOpenAI, APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := ext.(*openai.Client); !ok {
		t.Fatalf("want *openai.Client, got %T", ext)
	}

	ext, err = NewExtractor(common.LLMConfig{Provider: common.ProviderFunction, FunctionURL: "http://x"}, nil)
	if err != nil {
		t.Fatalf("function: %v", err)
	}
	if _, ok := ext.(*function.Client); !ok {
		t.Fatalf("want *function.Client, got %T", ext)
	}

	if _, err := NewExtractor(common.LLMConfig{Provider: "nope"}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
