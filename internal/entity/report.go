package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

// PersistablePayload is a validated draft flattened for the persistence collaborator.
type PersistablePayload struct {
	Name                    string     `json:"nome"`
	Age                     *int       `json:"idade,omitempty"`
	Gender                  string     `json:"genero"`
	Location                string     `json:"ultima_localizacao"`
	Latitude                *float64   `json:"latitude,omitempty"`
	Longitude               *float64   `json:"longitude,omitempty"`
	Description             string     `json:"descricao_detalhada"`
	Category                string     `json:"category"`
	MissingSince            *time.Time `json:"data_desaparecimento,omitempty"`
	ContactName             string     `json:"nome_responsavel"`
	ContactPhone            string     `json:"contacto_do_responsavel"`
	AdditionalContactNames  []string   `json:"responsaveis_nomes"`
	AdditionalContactPhones []string   `json:"responsaveis_contactos"`
	Photo                   *Photo     `json:"-"`
}

// Report is a persisted missing-person case.
type Report struct {
	ID         uuid.UUID            `json:"id"`
	Payload    PersistablePayload   `json:"payload"`
	PhotoURL   string               `json:"photo_url"`
	Status     constants.CaseStatus `json:"status"`
	ReportedBy uuid.UUID            `json:"reported_by"`
	CreatedAt  time.Time            `json:"created_at"`
}
