package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, it *Item) error {
	for _, existing := range m.items {
		if existing.Nom == it.Nom {
			return ErrDuplicateName
		}
	}
	it.ID = uuid.New()
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockRepo) GetByName(_ context.Context, nom string) (*Item, error) {
	for _, it := range m.items {
		if it.Nom == nom {
			cp := *it
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, it *Item) error {
	if _, ok := m.items[it.ID]; !ok {
		return ErrNotFound
	}
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, _ pagination.Params) ([]*Item, int, error) {
	var out []*Item
	for _, it := range m.items {
		if f.Actif != nil && it.Actif != *f.Actif {
			continue
		}
		if f.Type != nil && it.Type != *f.Type {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestSeed_InsertsMissingOnly(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.Seed(context.Background(), DefaultItems())
	require.NoError(t, err)
	assert.Equal(t, 8, created)

	created, err = svc.Seed(context.Background(), DefaultItems())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, repo.items, 8)

	for _, it := range repo.items {
		assert.True(t, it.Facturable, it.Nom)
		assert.True(t, it.Actif, it.Nom)
	}
}

func TestDefaultItems_Prices(t *testing.T) {
	prices := map[string]float64{}
	for _, it := range DefaultItems() {
		prices[it.Nom] = it.PrixUnitaire
	}
	assert.Equal(t, 50.0, prices["Installation d'équipement"])
	assert.Equal(t, 75.0, prices["Évaluation technique à domicile"])
	assert.Equal(t, 0.0, prices["Location d'équipement"])
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Create(context.Background(), &Item{PrixUnitaire: -1})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "nom")
	assert.Contains(t, appErr.Fields, "type")
	assert.Contains(t, appErr.Fields, "prix_unitaire")
}

func TestDeactivate(t *testing.T) {
	svc, repo := newTestService()
	it := NewItem{Nom: "Télésuivi", Type: "Suivi", PrixUnitaire: 15}.Item()
	require.NoError(t, svc.Create(context.Background(), it))
	require.NoError(t, svc.Deactivate(context.Background(), it.ID))
	assert.False(t, repo.items[it.ID].Actif)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), uuid.New()), ErrNotFound)
}

func TestNewItem_Defaults(t *testing.T) {
	off := false
	it := NewItem{Nom: "Devis", Type: "Administratif", Facturable: &off}.Item()
	assert.False(t, it.Facturable)
	assert.True(t, it.Actif)
}

func TestCreateServiceHandler(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nom":"Télésuivi","type":"Suivi","prix_unitaire":15}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.CreateService(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"facturable":true`)
}
