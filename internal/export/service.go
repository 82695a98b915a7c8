package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// Row is one batch intake outcome laid out for human review.
type Row struct {
	Source        string
	Draft         entity.ReportDraft
	MissingFields []string
	ReportID      string
	PhotoURL      string
	Message       string
	Err           string
}

// ReportLister is the repository slice the report export needs.
type ReportLister interface {
	ListReports(ctx context.Context, limit int) ([]entity.Report, error)
}

// Service produces XLSX workbooks for batch review and stored reports.
type Service struct {
	reports ReportLister
	logger  *slog.Logger
}

func NewService(reports ReportLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reports: reports, logger: logger}
}

const (
	draftsSheet  = "Drafts"
	reportsSheet = "Reports"
)

var draftHeaders = []string{
	"Poster",
	"Status",
	"Missing Fields",
	"Name",
	"Age",
	"Gender",
	"Category",
	"Last Seen",
	"Latitude",
	"Longitude",
	"Missing Since",
	"Description",
	"Contact Name",
	"Contact Phone",
	"Additional Contacts",
	"Report ID",
	"Photo URL",
	"Notes",
}

// DraftsXLSX renders batch rows. Valid and invalid drafts both get a row.
func (s *Service) DraftsXLSX(rows []Row) ([]byte, error) {
	start := time.Now()
	f, err := newWorkbook(draftsSheet, draftHeaders)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, r := range rows {
		d := r.Draft
		lat, lon := "", ""
		if d.Coordinates != nil {
			lat = fmt.Sprintf("%.6f", d.Coordinates.Latitude)
			lon = fmt.Sprintf("%.6f", d.Coordinates.Longitude)
		}
		status := "ready"
		switch {
		case r.Err != "":
			status = "error"
		case r.ReportID != "":
			status = "submitted"
		case len(r.MissingFields) > 0:
			status = "incomplete"
		}
		notes := r.Message
		if r.Err != "" {
			notes = r.Err
		}

		writeRow(f, draftsSheet, i+2, []any{
			r.Source,
			status,
			strings.Join(r.MissingFields, ", "),
			d.Name,
			d.Age,
			string(d.Gender),
			d.SelectedCategory(),
			d.SelectedLocation(),
			lat,
			lon,
			d.MissingSince,
			truncate(d.Description, 500),
			d.ContactName,
			d.ContactPhone,
			formatContacts(d.AdditionalContacts),
			r.ReportID,
			r.PhotoURL,
			notes,
		})
	}

	widths := map[string]float64{"A": 28, "B": 12, "C": 28, "D": 24, "H": 22, "L": 48, "O": 32, "P": 38, "Q": 48, "R": 48}
	for col, w := range widths {
		_ = f.SetColWidth(draftsSheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.drafts.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

var reportHeaders = []string{
	"Report ID",
	"Created At",
	"Status",
	"Name",
	"Age",
	"Gender",
	"Category",
	"Last Seen",
	"Latitude",
	"Longitude",
	"Missing Since",
	"Description",
	"Contact Name",
	"Contact Phone",
	"Additional Contacts",
	"Photo URL",
	"Reported By",
}

// ReportsXLSX renders the newest stored reports.
func (s *Service) ReportsXLSX(ctx context.Context, limit int) ([]byte, error) {
	if s.reports == nil {
		return nil, fmt.Errorf("export: no report store configured")
	}
	start := time.Now()
	reps, err := s.reports.ListReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}

	f, err := newWorkbook(reportsSheet, reportHeaders)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, r := range reps {
		p := r.Payload
		var age, lat, lon, since any = "", "", "", ""
		if p.Age != nil {
			age = *p.Age
		}
		if p.Latitude != nil && p.Longitude != nil {
			lat, lon = *p.Latitude, *p.Longitude
		}
		if p.MissingSince != nil {
			since = p.MissingSince.Format("2006-01-02")
		}
		contacts := make([]entity.Contact, 0, len(p.AdditionalContactNames))
		for j, name := range p.AdditionalContactNames {
			c := entity.Contact{Name: name}
			if j < len(p.AdditionalContactPhones) {
				c.Phone = p.AdditionalContactPhones[j]
			}
			contacts = append(contacts, c)
		}

		writeRow(f, reportsSheet, i+2, []any{
			r.ID.String(),
			r.CreatedAt.UTC().Format(time.RFC3339),
			string(r.Status),
			p.Name,
			age,
			p.Gender,
			p.Category,
			p.Location,
			lat,
			lon,
			since,
			truncate(p.Description, 500),
			p.ContactName,
			p.ContactPhone,
			formatContacts(contacts),
			r.PhotoURL,
			r.ReportedBy.String(),
		})
	}

	_ = f.SetColWidth(reportsSheet, "A", "A", 38)
	_ = f.SetColWidth(reportsSheet, "B", "B", 22)
	_ = f.SetColWidth(reportsSheet, "L", "L", 48)
	_ = f.SetColWidth(reportsSheet, "P", "P", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.reports.ok", "rows", len(reps), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	writeRow(f, sheet, 1, row)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func formatContacts(cs []entity.Contact) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Name == "" && c.Phone == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(c.Name+" "+c.Phone))
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
