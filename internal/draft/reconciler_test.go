package draft

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
)

func ptr(s string) *string { return &s }

func filled() entity.ReportDraft {
	d := entity.NewReportDraft()
	d.Name = "Typed Name"
	d.Age = "40"
	d.Gender = constants.GenderMale
	d.Description = "typed description"
	d.Category = string(constants.Adult)
	d.MissingSince = "2025-01-01"
	d.ContactName = "Typed Contact"
	d.ContactPhone = "840000000"
	d.LocationPreset = "Matola"
	d.AdditionalContacts = []entity.Contact{{Name: "Existing", Phone: "1"}}
	return d
}

func reconcilerWith(d entity.ReportDraft) *Reconciler {
	r := NewReconciler()
	r.draft = d
	return r
}

func TestMergePrecedence(t *testing.T) {
	r := reconcilerWith(filled())
	gen := r.BeginImage(&entity.Photo{Filename: "p.jpg", Data: []byte{1}})

	f := llm.ExtractedFields{
		Name:         ptr("Ana Sitoe"),
		Age:          ptr("12"),
		Gender:       ptr("Feminino"),
		Description:  ptr("camisola azul"),
		MissingSince: ptr("2025-02-03"),
		Category:     ptr("Criança"),
		ContactName:  ptr("Rosa"),
		ContactPhone: ptr("841234567"),
		Location:     ptr("Bairro Zimpeto"),
		Contacts:     []entity.Contact{{Name: "Joao", Phone: "82"}, {Name: "Marta", Phone: "86"}},
	}
	res := r.Merge(gen, f)
	if !res.Applied || res.LocationText != "Bairro Zimpeto" {
		t.Fatalf("Merge = %+v", res)
	}

	got := r.Snapshot()
	want := entity.ReportDraft{
		Name:               "Ana Sitoe",
		Age:                "12",
		Gender:             constants.GenderFemale,
		LocationPreset:     constants.Other,
		LocationManualText: "Bairro Zimpeto",
		Description:        "camisola azul",
		Category:           "Criança",
		MissingSince:       "2025-02-03",
		Photo:              &entity.Photo{Filename: "p.jpg", Data: []byte{1}},
		ContactName:        "Rosa",
		ContactPhone:       "841234567",
		AdditionalContacts: []entity.Contact{{Name: "Joao", Phone: "82"}, {Name: "Marta", Phone: "86"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeAbsence(t *testing.T) {
	before := filled()
	r := reconcilerWith(before)
	gen := r.BeginImage(nil)

	res := r.Merge(gen, llm.ExtractedFields{Name: ptr(""), Contacts: []entity.Contact{}})
	if !res.Applied || res.LocationText != "" {
		t.Fatalf("Merge = %+v", res)
	}
	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Errorf("absent fields changed the draft (-want +got):\n%s", diff)
	}
}

func TestMergePartialKeepsOthers(t *testing.T) {
	r := reconcilerWith(filled())
	gen := r.BeginImage(nil)
	r.Merge(gen, llm.ExtractedFields{ContactPhone: ptr("829999999")})

	got := r.Snapshot()
	if got.ContactPhone != "829999999" || got.Name != "Typed Name" || got.LocationPreset != "Matola" {
		t.Errorf("draft = %+v", got)
	}
	if len(got.AdditionalContacts) != 1 || got.AdditionalContacts[0].Name != "Existing" {
		t.Errorf("contacts = %+v", got.AdditionalContacts)
	}
}

func TestStaleMergeIsNoop(t *testing.T) {
	r := NewReconciler()
	genA := r.BeginImage(&entity.Photo{Filename: "a.jpg"})
	genB := r.BeginImage(&entity.Photo{Filename: "b.jpg"})
	if genB != genA+1 {
		t.Fatalf("generation did not advance: %d -> %d", genA, genB)
	}

	before := r.Snapshot()
	if res := r.Merge(genA, llm.ExtractedFields{Name: ptr("From A"), Location: ptr("Beira")}); res.Applied {
		t.Fatal("stale merge applied")
	}
	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Errorf("stale merge changed the draft (-want +got):\n%s", diff)
	}
	if res := r.Merge(genB, llm.ExtractedFields{Name: ptr("From B")}); !res.Applied {
		t.Fatal("current merge rejected")
	}
	if got := r.Snapshot().Name; got != "From B" {
		t.Errorf("name = %q", got)
	}
}

func TestLatestLocationWins(t *testing.T) {
	r := NewReconciler()
	a := r.BeginLocation(false)
	b := r.BeginLocation(false)

	cb := entity.Coordinate{Latitude: -19.8, Longitude: 34.8}
	if !r.ApplyCoordinates(b, &cb) {
		t.Fatal("latest ticket rejected")
	}
	ca := entity.Coordinate{Latitude: 1, Longitude: 2}
	if r.ApplyCoordinates(a, &ca) {
		t.Fatal("superseded ticket applied")
	}
	if got := r.Snapshot().Coordinates; got == nil || *got != cb {
		t.Errorf("coordinates = %+v, want %+v", got, cb)
	}
}

func TestBoundTicketDiesWithGeneration(t *testing.T) {
	r := NewReconciler()
	r.BeginImage(nil)
	bound := r.BeginLocation(true)
	r.BeginImage(nil)
	if r.ApplyCoordinates(bound, &entity.Coordinate{Latitude: 1, Longitude: 1}) {
		t.Fatal("bound ticket applied after the generation advanced")
	}

	manual := r.BeginLocation(false)
	r.BeginImage(nil)
	if !r.ApplyCoordinates(manual, &entity.Coordinate{Latitude: 1, Longitude: 1}) {
		t.Fatal("manual ticket rejected by an image change")
	}
}

func TestCoordinatePairing(t *testing.T) {
	r := NewReconciler()
	tk := r.BeginLocation(false)
	r.ApplyCoordinates(tk, &entity.Coordinate{Latitude: -25.9, Longitude: 32.5})
	tk = r.BeginLocation(false)
	r.ApplyCoordinates(tk, nil)
	if got := r.Snapshot().Coordinates; got != nil {
		t.Errorf("unresolved left coordinates %+v", got)
	}
}

func TestSelectLocationPreset(t *testing.T) {
	r := NewReconciler()
	text, resolve, err := r.SelectLocationPreset("Boane")
	if err != nil || !resolve || text != "Boane" {
		t.Fatalf("SelectLocationPreset(Boane) = %q, %v, %v", text, resolve, err)
	}
	if _, resolve, err := r.SelectLocationPreset(constants.Other); err != nil || resolve {
		t.Fatalf("sentinel resolve = %v, err = %v", resolve, err)
	}
	if _, _, err := r.SelectLocationPreset("Lisboa"); !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err = %v", err)
	}
	r.SetManualLocation("Bairro Zimpeto")
	d := r.Snapshot()
	if d.LocationPreset != constants.Other || d.SelectedLocation() != "Bairro Zimpeto" {
		t.Errorf("draft = %+v", d)
	}
}

func TestContacts(t *testing.T) {
	r := NewReconciler()
	if err := r.RemoveContact(0); !errors.Is(err, ErrLastContact) {
		t.Fatalf("RemoveContact last = %v", err)
	}
	r.AddContact()
	if err := r.SetContact(1, entity.Contact{Name: "Marta", Phone: "86"}); err != nil {
		t.Fatalf("SetContact: %v", err)
	}
	if err := r.SetContact(5, entity.Contact{}); !errors.Is(err, ErrContactIndex) {
		t.Fatalf("SetContact out of range = %v", err)
	}
	if err := r.RemoveContact(0); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	want := []entity.Contact{{Name: "Marta", Phone: "86"}}
	if diff := cmp.Diff(want, r.Snapshot().AdditionalContacts); diff != "" {
		t.Errorf("contacts (-want +got):\n%s", diff)
	}
}

func TestApplyEditClears(t *testing.T) {
	r := reconcilerWith(filled())
	g := constants.GenderOther
	r.ApplyEdit(Edit{Name: ptr(""), Gender: &g})
	d := r.Snapshot()
	if d.Name != "" || d.Gender != constants.GenderOther || d.Description != "typed description" {
		t.Errorf("draft = %+v", d)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewReconciler()
	r.SetPhoto(&entity.Photo{Data: []byte{1, 2}})
	s := r.Snapshot()
	s.Photo.Data[0] = 9
	s.AdditionalContacts[0].Name = "mutated"
	again := r.Snapshot()
	if again.Photo.Data[0] != 1 || again.AdditionalContacts[0].Name != "" {
		t.Error("snapshot shares memory with the draft")
	}
}

func TestResetInvalidatesInFlight(t *testing.T) {
	r := reconcilerWith(filled())
	gen := r.BeginImage(&entity.Photo{Data: []byte{1}})
	tk := r.BeginLocation(false)
	r.Reset()

	if r.Merge(gen, llm.ExtractedFields{Name: ptr("late")}).Applied {
		t.Error("merge applied after reset")
	}
	if r.ApplyCoordinates(tk, &entity.Coordinate{}) {
		t.Error("coordinates applied after reset")
	}
	if r.Generation() <= gen {
		t.Error("generation went backwards")
	}
	if diff := cmp.Diff(entity.NewReportDraft(), r.Snapshot()); diff != "" {
		t.Errorf("reset draft (-want +got):\n%s", diff)
	}
}
