package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/draft"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
	"github.com/joseph-ayodele/missing-persons-intake/internal/validate"
)

const (
	// MaxImageBytes caps decoded poster uploads.
	MaxImageBytes = 15 << 20
	// MaxMessageBytes fits a base64 poster at MaxImageBytes plus the other request fields.
	MaxMessageBytes = (MaxImageBytes+2)/3*4 + 64<<10
)

// IntakeService exposes intake sessions over gRPC.
type IntakeService struct {
	sessions *Sessions
	logger   *slog.Logger
}

var _ IntakeServiceServer = (*IntakeService)(nil)

func NewIntakeService(sessions *Sessions, logger *slog.Logger) *IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeService{sessions: sessions, logger: logger}
}

func (s *IntakeService) CreateSession(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, orch := s.sessions.Create()
	return draftResponse(id, orch, nil)
}

func (s *IntakeService) CloseSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Close(id); err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"session_id": id, "closed": true})
}

// UploadPoster sets the photo and starts recognition and extraction. Pass
// "analyze": false to only set the photo.
func (s *IntakeService) UploadPoster(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(in)
	if err != nil {
		s.logger.Error("intake.upload.invalid", "session_id", id, "error", err)
		return nil, err
	}

	analyze := true
	if v, ok := in.GetFields()["analyze"]; ok {
		analyze = v.GetBoolValue()
	}
	if !analyze {
		orch.SetPhoto(img)
		return draftResponse(id, orch, nil)
	}

	gen := orch.UploadPoster(img)
	s.logger.Info("intake.upload.accepted", "session_id", id, "generation", gen, "bytes", len(img.Data))
	return draftResponse(id, orch, map[string]any{"generation": float64(gen)})
}

func (s *IntakeService) SetPhoto(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(in)
	if err != nil {
		return nil, err
	}
	orch.SetPhoto(img)
	return draftResponse(id, orch, nil)
}

func (s *IntakeService) ClearPhoto(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	orch.Draft().ClearPhoto()
	return draftResponse(id, orch, nil)
}

// EditFields applies a manual edit. Only keys present in "fields" change; a present
// empty string clears the field.
func (s *IntakeService) EditFields(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	fields := in.GetFields()["fields"].GetStructValue().GetFields()
	if len(fields) == 0 {
		return nil, common.InvalidArgumentError("fields is required")
	}

	str := func(key string) *string {
		v, ok := fields[key]
		if !ok {
			return nil
		}
		out := v.GetStringValue()
		return &out
	}
	edit := draft.Edit{
		Name:               str("name"),
		Age:                str("age"),
		Description:        str("description"),
		Category:           str("category"),
		CategoryManualText: str("category_manual_text"),
		MissingSince:       str("missing_since"),
		ContactName:        str("contact_name"),
		ContactPhone:       str("contact_phone"),
	}
	if g := str("gender"); g != nil {
		gender := constants.GenderUnset
		if *g != "" {
			var ok bool
			if gender, ok = constants.CanonicalGender(*g); !ok {
				return nil, common.InvalidArgumentErrorf("unknown gender %q", *g)
			}
		}
		edit.Gender = &gender
	}

	orch.Draft().ApplyEdit(edit)
	return draftResponse(id, orch, nil)
}

// EditContact adds, removes or updates an additional contact.
func (s *IntakeService) EditContact(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	f := in.GetFields()
	action := strings.TrimSpace(f["action"].GetStringValue())
	var index int
	if action == "remove" || action == "set" {
		if index, err = contactIndex(f); err != nil {
			return nil, err
		}
	}

	switch action {
	case "add":
		orch.Draft().AddContact()
	case "remove":
		err = orch.Draft().RemoveContact(index)
	case "set":
		err = orch.Draft().SetContact(index, entity.Contact{
			Name:  f["nome"].GetStringValue(),
			Phone: f["contacto"].GetStringValue(),
		})
	default:
		return nil, common.InvalidArgumentErrorf("unknown contact action %q", action)
	}
	if err != nil {
		if errors.Is(err, draft.ErrLastContact) {
			return nil, common.FailedPreconditionError(err.Error())
		}
		return nil, common.InvalidArgumentError(err.Error())
	}
	return draftResponse(id, orch, nil)
}

// contactIndex reads the required whole-number "index" field.
func contactIndex(f map[string]*structpb.Value) (int, error) {
	v, ok := f["index"]
	if !ok {
		return 0, common.InvalidArgumentError("index is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue < 0 || n.NumberValue > math.MaxInt32 {
		return 0, common.InvalidArgumentErrorf("index must be a non-negative whole number")
	}
	return int(n.NumberValue), nil
}

func (s *IntakeService) SelectLocation(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	preset := in.GetFields()["preset"].GetStringValue()
	if err := orch.SelectLocation(preset); err != nil {
		return nil, common.ToStatus(err)
	}
	return draftResponse(id, orch, nil)
}

// SetManualLocation records typed location text. "search": true (or "blur": true)
// also resolves it, matching the form committing the field.
func (s *IntakeService) SetManualLocation(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	f := in.GetFields()
	text := f["text"].GetStringValue()
	if f["search"].GetBoolValue() || f["blur"].GetBoolValue() {
		orch.CommitManualLocation(text)
	} else {
		orch.TypeManualLocation(text)
	}
	return draftResponse(id, orch, nil)
}

// GetDraft returns the draft, the pipeline status and the fields still missing.
func (s *IntakeService) GetDraft(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	return draftResponse(id, orch, nil)
}

func (s *IntakeService) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, orch, err := s.session(in)
	if err != nil {
		return nil, err
	}
	reporter := strings.TrimSpace(in.GetFields()["reporter_id"].GetStringValue())
	v := common.NewValidator().Field("reporter_id", reporter, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	ctx = common.WithSessionID(ctx, id)
	report, err := orch.Submit(ctx, uuid.MustParse(reporter))
	if err != nil {
		var failure *validate.Failure
		if errors.As(err, &failure) {
			s.logger.Info("intake.submit.invalid", "session_id", id, "missing", failure.MissingFields)
		} else {
			s.logger.Error("intake.submit.failed", "session_id", id, "error", err)
		}
		return nil, common.ToStatus(err)
	}

	s.logger.Info("intake.submit.ok", "session_id", id, "report_id", report.ID)
	return draftResponse(id, orch, map[string]any{
		"report_id": report.ID.String(),
		"photo_url": report.PhotoURL,
	})
}

func (s *IntakeService) session(in *structpb.Struct) (string, *pipeline.Orchestrator, error) {
	id, err := sessionID(in)
	if err != nil {
		return "", nil, err
	}
	orch, err := s.sessions.Get(id)
	if err != nil {
		return "", nil, common.ToStatus(err)
	}
	return id, orch, nil
}

func sessionID(in *structpb.Struct) (string, error) {
	id := strings.TrimSpace(in.GetFields()["session_id"].GetStringValue())
	if id == "" {
		return "", common.InvalidArgumentError("session_id is required")
	}
	return id, nil
}

func decodeImage(in *structpb.Struct) (ocr.Image, error) {
	f := in.GetFields()
	raw := f["image_base64"].GetStringValue()
	if raw == "" {
		return ocr.Image{}, common.InvalidArgumentError("image_base64 is required")
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > MaxImageBytes {
		return ocr.Image{}, common.InvalidArgumentError("image is too large")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return ocr.Image{}, common.InvalidArgumentErrorf("image_base64: %v", err)
	}
	return ocr.Image{Filename: strings.TrimSpace(f["filename"].GetStringValue()), Data: data}, nil
}

// draftResponse renders the session state. extra keys are merged at the top level.
func draftResponse(id string, orch *pipeline.Orchestrator, extra map[string]any) (*structpb.Struct, error) {
	snap := orch.Draft().Snapshot()
	st := orch.Status()

	missing := []any{}
	if _, err := validate.Validate(snap); err != nil {
		var failure *validate.Failure
		if errors.As(err, &failure) {
			for _, f := range failure.MissingFields {
				missing = append(missing, f)
			}
		}
	}

	draftMap, err := toMap(snap)
	if err != nil {
		return nil, common.InternalError("encode draft")
	}
	statusMap, err := toMap(st)
	if err != nil {
		return nil, common.InternalError("encode status")
	}

	out := map[string]any{
		"session_id":     id,
		"draft":          draftMap,
		"status":         statusMap,
		"missing_fields": missing,
	}
	for k, v := range extra {
		out[k] = v
	}
	res, err := structpb.NewStruct(out)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return res, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
