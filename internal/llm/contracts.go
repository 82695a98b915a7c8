package llm

import (
	"context"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// ExtractedFields is the partial record returned by a FieldExtractor. A nil field
// means the service did not supply a usable value.
type ExtractedFields struct {
	Name         *string          `json:"nome,omitempty"`
	Age          *string          `json:"idade,omitempty"` // decimal string
	Gender       *string          `json:"genero,omitempty"`
	Description  *string          `json:"descricao,omitempty"`
	MissingSince *string          `json:"data_desaparecimento,omitempty"` // YYYY-MM-DD
	Category     *string          `json:"categoria,omitempty"`
	ContactName  *string          `json:"nome_responsavel,omitempty"`
	ContactPhone *string          `json:"contacto,omitempty"`
	Location     *string          `json:"ultima_localizacao,omitempty"`
	Contacts     []entity.Contact `json:"responsaveis,omitempty"`
}

// Empty reports whether nothing usable was extracted.
func (f ExtractedFields) Empty() bool {
	for _, p := range []*string{f.Name, f.Age, f.Gender, f.Description, f.MissingSince, f.Category, f.ContactName, f.ContactPhone, f.Location} {
		if p != nil {
			return false
		}
	}
	return len(f.Contacts) == 0
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (ExtractedFields, error)
}
