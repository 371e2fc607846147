package equipment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/civil"
)

func TestIsAssigned_TruthTable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	pid := uuid.New()

	cases := []struct {
		name    string
		patient *uuid.UUID
		end     *time.Time
		want    bool
	}{
		{"no patient, no end", nil, nil, false},
		{"no patient, future end", nil, &future, false},
		{"patient, open assignment", &pid, nil, true},
		{"patient, ends in future", &pid, &future, true},
		{"patient, ended in past", &pid, &past, false},
		{"patient, ends exactly now", &pid, &now, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			e := &Equipment{PatientID: tt.patient, DateFinAttribution: tt.end}
			if got := e.IsAssigned(now); got != tt.want {
				t.Errorf("IsAssigned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMaintenanceDue(t *testing.T) {
	today, _ := civil.Parse("2024-06-01")
	d := func(s string) *civil.Date {
		v, _ := civil.Parse(s)
		return &v
	}
	cases := []struct {
		name string
		e    Equipment
		want bool
	}{
		{"next within 30 days", Equipment{Statut: StatusInService, DateProchaineMaintenance: d("2024-07-01")}, true},
		{"next beyond 30 days", Equipment{Statut: StatusInService, DateProchaineMaintenance: d("2024-07-02")}, false},
		{"last exactly a year ago", Equipment{Statut: StatusAvailable, DateDerniereMaintenance: d("2023-06-02")}, true},
		{"last recent", Equipment{Statut: StatusAvailable, DateDerniereMaintenance: d("2024-01-01")}, false},
		{"retired excluded", Equipment{Statut: StatusRetired, DateProchaineMaintenance: d("2024-01-01")}, false},
		{"no dates", Equipment{Statut: StatusNew}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.IsMaintenanceDue(today); got != tt.want {
				t.Errorf("IsMaintenanceDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON_IncludesComputedFlag(t *testing.T) {
	pid := uuid.New()
	e := Equipment{NumeroSerie: "CPAP-001", Statut: StatusInService, PatientID: &pid}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out map[string]interface{}
	json.Unmarshal(raw, &out)
	if out["est_attribue"] != true {
		t.Errorf("est_attribue = %v, want true", out["est_attribue"])
	}
	if out["numero_serie"] != "CPAP-001" {
		t.Errorf("numero_serie = %v", out["numero_serie"])
	}

	raw, _ = json.Marshal(&Equipment{NumeroSerie: "CPAP-002"})
	json.Unmarshal(raw, &out)
	if out["est_attribue"] != false {
		t.Errorf("est_attribue = %v, want false", out["est_attribue"])
	}
}

func TestValidate(t *testing.T) {
	e := &Equipment{Statut: "cassé"}
	err := e.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
}
