package llm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

func ptr(s string) *string { return &s }

func TestDecodeFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ExtractedFields
	}{
		{
			name: "full poster",
			raw: `{"nome":" Ana Sitoe ","idade":12,"genero":"F","descricao":"Vestia uniforme escolar",
				"data_desaparecimento":"03/02/2025","categoria":"crianca","nome_responsavel":"Rosa",
				"contacto":"+258 84 123 4567","ultima_localizacao":"Bairro Zimpeto",
				"responsaveis":[{"nome":"Joao","contacto":"82 000 1111"},{"nome":"","contacto":""}]}`,
			want: ExtractedFields{
				Name:         ptr("Ana Sitoe"),
				Age:          ptr("12"),
				Gender:       ptr("Feminino"),
				Description:  ptr("Vestia uniforme escolar"),
				MissingSince: ptr("2025-02-03"),
				Category:     ptr("Criança"),
				ContactName:  ptr("Rosa"),
				ContactPhone: ptr("+258 84 123 4567"),
				Location:     ptr("Bairro Zimpeto"),
				Contacts:     []entity.Contact{{Name: "Joao", Phone: "82 000 1111"}},
			},
		},
		{
			name: "unknown keys and empties are absent",
			raw:  `{"nome":"","idade":null,"genero":"desconhecido","foo":"bar","confidence":0.9,"responsaveis":[]}`,
			want: ExtractedFields{},
		},
		{
			name: "age as text and unknown category kept verbatim",
			raw:  `{"idade":"17 anos","categoria":"Estudante","contacto":841234567}`,
			want: ExtractedFields{Age: ptr("17"), Category: ptr("Estudante"), ContactPhone: ptr("841234567")},
		},
		{
			name: "bad date dropped",
			raw:  `{"data_desaparecimento":"na semana passada","nome":"Carlos"}`,
			want: ExtractedFields{Name: ptr("Carlos")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFields([]byte(tt.raw), nil)
			if err != nil {
				t.Fatalf("DecodeFields: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFieldsUndecodable(t *testing.T) {
	for _, raw := range []string{`not json`, `["nome"]`} {
		if _, err := DecodeFields([]byte(raw), nil); !errors.Is(err, common.ErrExtraction) {
			t.Errorf("DecodeFields(%q) err = %v, want ErrExtraction", raw, err)
		}
	}
}

func TestEmpty(t *testing.T) {
	if !(ExtractedFields{}).Empty() {
		t.Error("zero value should be empty")
	}
	if (ExtractedFields{Contacts: []entity.Contact{{Name: "x"}}}).Empty() {
		t.Error("contacts count as content")
	}
}

func TestBuildUserPromptTruncates(t *testing.T) {
	long := make([]rune, maxPromptRunes+50)
	for i := range long {
		long[i] = 'ç'
	}
	got := []rune(BuildUserPrompt(string(long)))
	if want := len([]rune("Poster text:\n")) + maxPromptRunes; len(got) != want {
		t.Errorf("prompt runes = %d, want %d", len(got), want)
	}
}
