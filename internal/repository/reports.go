package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

const tableReports = "missing_people"

const (
	colID                = "id"
	colName              = "nome"
	colAge               = "idade"
	colGender            = "genero"
	colLocation          = "ultima_localizacao"
	colLatitude          = "latitude"
	colLongitude         = "longitude"
	colDescription       = "descricao_detalhada"
	colCategory          = "category"
	colMissingSince      = "data_desaparecimento"
	colContactName       = "nome_responsavel"
	colContactPhone      = "contacto_do_responsavel"
	colContactNames      = "responsaveis_nomes"
	colContactPhones     = "responsaveis_contactos"
	colPhotoURL          = "photo_url"
	colStatus            = "status"
	colReportedBy        = "reported_by"
	colCreatedAt         = "created_at"
	createdAtLayout      = "2006-01-02T15:04:05.000000000Z"
	missingSinceLayout   = "2006-01-02"
	defaultListPageLimit = 50
)

var reportColumns = []string{
	colID, colName, colAge, colGender, colLocation, colLatitude, colLongitude,
	colDescription, colCategory, colMissingSince, colContactName, colContactPhone,
	colContactNames, colContactPhones, colPhotoURL, colStatus, colReportedBy, colCreatedAt,
}

type ReportRepository interface {
	EnsureSchema(ctx context.Context) error
	CreateReport(ctx context.Context, report entity.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (entity.Report, error)
	ListReports(ctx context.Context, limit int) ([]entity.Report, error)
}

type reportRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewReportRepository(drv *entsql.Driver, logger *slog.Logger) ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportRepository{drv: drv, logger: logger}
}

// EnsureSchema creates the reports table when it does not exist yet.
// Dates are stored as fixed-width UTC text so both dialects sort them the same way.
func (r *reportRepository) EnsureSchema(ctx context.Context) error {
	floatType := "REAL"
	if r.drv.Dialect() == dialect.Postgres {
		floatType = "DOUBLE PRECISION"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s TEXT PRIMARY KEY,
	%s TEXT NOT NULL,
	%s INTEGER,
	%s TEXT NOT NULL DEFAULT '',
	%s TEXT NOT NULL DEFAULT '',
	%s %s,
	%s %s,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT,
	%s TEXT NOT NULL DEFAULT '',
	%s TEXT NOT NULL,
	%s TEXT NOT NULL DEFAULT '[]',
	%s TEXT NOT NULL DEFAULT '[]',
	%s TEXT NOT NULL DEFAULT '',
	%s TEXT NOT NULL DEFAULT '%s',
	%s TEXT NOT NULL,
	%s TEXT NOT NULL
)`, tableReports,
			colID, colName, colAge, colGender, colLocation,
			colLatitude, floatType, colLongitude, floatType,
			colDescription, colCategory, colMissingSince, colContactName, colContactPhone,
			colContactNames, colContactPhones, colPhotoURL,
			colStatus, constants.CaseMissing,
			colReportedBy, colCreatedAt),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)", tableReports, colCreatedAt, tableReports, colCreatedAt),
	}
	for _, stmt := range stmts {
		if _, err := r.drv.DB().ExecContext(ctx, stmt); err != nil {
			r.logger.Error("repository.schema.failed", "error", err)
			return fmt.Errorf("%w: failed to create schema: %w", common.ErrDatabase, err)
		}
	}
	return nil
}

func (r *reportRepository) CreateReport(ctx context.Context, report entity.Report) error {
	p := report.Payload
	names, err := json.Marshal(nonNil(p.AdditionalContactNames))
	if err != nil {
		return fmt.Errorf("%w: failed to encode contact names: %w", common.ErrPersist, err)
	}
	phones, err := json.Marshal(nonNil(p.AdditionalContactPhones))
	if err != nil {
		return fmt.Errorf("%w: failed to encode contact phones: %w", common.ErrPersist, err)
	}
	status := report.Status
	if status == "" {
		status = constants.CaseMissing
	}
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(tableReports).
		Columns(reportColumns...).
		Values(
			report.ID.String(),
			p.Name,
			nullInt(p.Age),
			p.Gender,
			p.Location,
			nullFloat(p.Latitude),
			nullFloat(p.Longitude),
			p.Description,
			p.Category,
			nullDate(p.MissingSince),
			p.ContactName,
			p.ContactPhone,
			string(names),
			string(phones),
			report.PhotoURL,
			string(status),
			report.ReportedBy.String(),
			createdAt.UTC().Format(createdAtLayout),
		).
		Query()

	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("repository.report.create.failed", "report_id", report.ID, "error", err)
		return fmt.Errorf("%w: failed to store report: %w", common.ErrPersist, err)
	}
	r.logger.Info("repository.report.created", "report_id", report.ID, "reported_by", report.ReportedBy)
	return nil
}

func (r *reportRepository) GetReport(ctx context.Context, id uuid.UUID) (entity.Report, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(reportColumns...).
		From(entsql.Table(tableReports)).
		Where(entsql.EQ(colID, id.String())).
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return entity.Report{}, fmt.Errorf("%w: failed to query report: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return entity.Report{}, fmt.Errorf("%w: failed to query report: %w", common.ErrDatabase, err)
		}
		return entity.Report{}, fmt.Errorf("%w: report %s", common.ErrNotFound, id)
	}
	return scanReport(rows)
}

// ListReports returns the newest reports first.
func (r *reportRepository) ListReports(ctx context.Context, limit int) ([]entity.Report, error) {
	if limit <= 0 {
		limit = defaultListPageLimit
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(reportColumns...).
		From(entsql.Table(tableReports)).
		OrderBy(entsql.Desc(colCreatedAt)).
		Limit(limit).
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.report.list.failed", "error", err)
		return nil, fmt.Errorf("%w: failed to list reports: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list reports: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func scanReport(rows *sql.Rows) (entity.Report, error) {
	var (
		id, reportedBy, createdAt, status string
		names, phones                     string
		age                               sql.NullInt64
		lat, lon                          sql.NullFloat64
		since                             sql.NullString
		rep                               entity.Report
	)
	p := &rep.Payload
	err := rows.Scan(
		&id, &p.Name, &age, &p.Gender, &p.Location, &lat, &lon,
		&p.Description, &p.Category, &since, &p.ContactName, &p.ContactPhone,
		&names, &phones, &rep.PhotoURL, &status, &reportedBy, &createdAt,
	)
	if err != nil {
		return entity.Report{}, fmt.Errorf("%w: failed to scan report: %w", common.ErrDatabase, err)
	}

	if rep.ID, err = uuid.Parse(id); err != nil {
		return entity.Report{}, fmt.Errorf("%w: invalid report id: %w", common.ErrDatabase, err)
	}
	if rep.ReportedBy, err = uuid.Parse(reportedBy); err != nil {
		return entity.Report{}, fmt.Errorf("%w: invalid reporter id: %w", common.ErrDatabase, err)
	}
	if rep.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return entity.Report{}, fmt.Errorf("%w: invalid created_at: %w", common.ErrDatabase, err)
	}
	rep.Status = constants.CaseStatus(status)

	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	if lat.Valid && lon.Valid {
		p.Latitude, p.Longitude = &lat.Float64, &lon.Float64
	}
	if since.Valid && since.String != "" {
		t, err := time.Parse(missingSinceLayout, since.String)
		if err != nil {
			return entity.Report{}, fmt.Errorf("%w: invalid data_desaparecimento: %w", common.ErrDatabase, err)
		}
		p.MissingSince = &t
	}
	if err := json.Unmarshal([]byte(names), &p.AdditionalContactNames); err != nil {
		return entity.Report{}, fmt.Errorf("%w: invalid responsaveis_nomes: %w", common.ErrDatabase, err)
	}
	if err := json.Unmarshal([]byte(phones), &p.AdditionalContactPhones); err != nil {
		return entity.Report{}, fmt.Errorf("%w: invalid responsaveis_contactos: %w", common.ErrDatabase, err)
	}
	return rep, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(missingSinceLayout), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// IsNotFound reports whether err came from a missing report.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
