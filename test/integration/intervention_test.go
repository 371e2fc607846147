package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/invoicing"
)

func TestInterventionRepo_ListBillable(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	p := createPatient(t, ctx, pool)
	other := createPatient(t, ctx, pool)
	repo := intervention.NewRepoPG(pool)

	live := createInvoice(t, ctx, pool, p.ID, invoicing.StatusPending, "2031-03-01", 100)
	cancelled := createInvoice(t, ctx, pool, p.ID, invoicing.StatusCancelled, "2031-03-01", 100)

	base := time.Date(2031, 3, 2, 9, 0, 0, 0, time.UTC)
	add := func(patientID uuid.UUID, statut string, offset int, billable bool, invoiceID *uuid.UUID) uuid.UUID {
		t.Helper()
		in := &intervention.Intervention{
			TypeIntervention: "maintenance",
			Statut:           statut,
			DatePlanifiee:    base.AddDate(0, 0, offset),
			PatientID:        patientID,
			Description:      "Contrôle concentrateur",
			Facturable:       billable,
			FactureID:        invoiceID,
		}
		if err := repo.Create(ctx, in); err != nil {
			t.Fatalf("create intervention: %v", err)
		}
		return in.ID
	}

	open := add(p.ID, intervention.StatusDone, 0, true, nil)
	dropped := add(p.ID, intervention.StatusCancelled, 1, true, nil)
	billed := add(p.ID, intervention.StatusDone, 2, true, &live.ID)
	rebillable := add(p.ID, intervention.StatusDone, 3, true, &cancelled.ID)
	free := add(p.ID, intervention.StatusDone, 4, false, nil)
	foreign := add(other.ID, intervention.StatusDone, 5, true, nil)

	got, err := repo.ListBillable(ctx, p.ID, []uuid.UUID{rebillable, foreign, free, billed, dropped, open})
	if err != nil {
		t.Fatalf("ListBillable: %v", err)
	}
	if len(got) != 2 || got[0].ID != open || got[1].ID != rebillable {
		ids := make([]uuid.UUID, 0, len(got))
		for _, in := range got {
			ids = append(ids, in.ID)
		}
		t.Fatalf("billable = %v, want [%s %s]", ids, open, rebillable)
	}

	if err := repo.SetInvoice(ctx, []uuid.UUID{open}, live.ID); err != nil {
		t.Fatalf("SetInvoice: %v", err)
	}
	got, err = repo.ListBillable(ctx, p.ID, []uuid.UUID{open})
	if err != nil || len(got) != 0 {
		t.Errorf("stamped intervention still billable: %v (%v)", got, err)
	}
}
