package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

func newTestRepo(t *testing.T) ReportRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv, err := OpenSQLite("", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { Close(drv, nil, logger) })

	repo := NewReportRepository(drv, logger)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return repo
}

func sampleReport(created time.Time) entity.Report {
	age := 34
	lat, lon := -25.9692, 32.5732
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return entity.Report{
		ID: uuid.New(),
		Payload: entity.PersistablePayload{
			Name:                    "Ana Macuácua",
			Age:                     &age,
			Gender:                  string(constants.GenderFemale),
			Location:                "Maputo",
			Latitude:                &lat,
			Longitude:               &lon,
			Description:             "Camisola azul",
			Category:                string(constants.Adult),
			MissingSince:            &since,
			ContactName:             "Carlos",
			ContactPhone:            "841234567",
			AdditionalContactNames:  []string{"Rosa"},
			AdditionalContactPhones: []string{"829876543"},
		},
		PhotoURL:   "http://localhost/uploads/1.jpg",
		Status:     constants.CaseMissing,
		ReportedBy: uuid.New(),
		CreatedAt:  created.UTC(),
	}
}

func TestCreateAndGetReport(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := sampleReport(time.Date(2024, 3, 2, 10, 30, 0, 123, time.UTC))
	if err := repo.CreateReport(ctx, want); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetReport(ctx, want.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateReportNullableColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rep := entity.Report{
		ID: uuid.New(),
		Payload: entity.PersistablePayload{
			Name:         "João",
			Description:  "Sem detalhes",
			Category:     "Outro caso",
			ContactPhone: "841111111",
		},
		ReportedBy: uuid.New(),
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateReport(ctx, rep); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	p := got.Payload
	if p.Age != nil || p.Latitude != nil || p.Longitude != nil || p.MissingSince != nil {
		t.Errorf("expected null columns to stay nil, got %+v", p)
	}
	if got.Status != constants.CaseMissing {
		t.Errorf("status = %q, want %q", got.Status, constants.CaseMissing)
	}
	if len(p.AdditionalContactNames) != 0 || p.AdditionalContactNames == nil {
		t.Errorf("contact names = %#v, want empty slice", p.AdditionalContactNames)
	}
}

func TestGetReportNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetReport(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should report true")
	}
}

func TestCreateReportDuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rep := sampleReport(time.Now())
	if err := repo.CreateReport(ctx, rep); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.CreateReport(ctx, rep)
	if !errors.Is(err, common.ErrPersist) {
		t.Fatalf("expected ErrPersist on duplicate id, got %v", err)
	}
}

func TestListReportsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rep := sampleReport(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, rep.ID)
		if err := repo.CreateReport(ctx, rep); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	got, err := repo.ListReports(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Errorf("unexpected order: %v, %v", got[0].ID, got[1].ID)
	}
}
