package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/JdHeer/kbc-p3dh/internal/errors"
	"github.com/JdHeer/kbc-p3dh/internal/services"
	"github.com/JdHeer/kbc-p3dh/internal/shared/testutil"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// MockFactsService is a mock implementation of FactsServiceInterface
type MockFactsService struct {
	mock.Mock
}

func (m *MockFactsService) Query(ctx context.Context, f store.Filter) (*services.FactPage, error) {
	args := m.Called(f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FactPage), args.Error(1)
}

func (m *MockFactsService) Get(ctx context.Context, id int64) (domain.MergedFact, error) {
	args := m.Called(id)
	return args.Get(0).(domain.MergedFact), args.Error(1)
}

func (m *MockFactsService) Export(ctx context.Context, f store.Filter, w io.Writer) (int, error) {
	args := m.Called(f, w)
	return args.Int(0), args.Error(1)
}

func (m *MockFactsService) Summary(ctx context.Context) (store.Totals, error) {
	args := m.Called()
	return args.Get(0).(store.Totals), args.Error(1)
}

func (m *MockFactsService) Entities(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFactsService) Periods(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFactsService) Templates(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFactsService) Groups(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newFactsHandler(t *testing.T, service FactsServiceInterface) *FactsHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewFactsHandler(service, logger, apierrors.NewErrorHandler(logger, false))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func mergedFact(id int64, template string) domain.MergedFact {
	v := 125000.0
	return domain.MergedFact{
		ID:           id,
		Entity:       "KBC Group",
		LEI:          "213800X3Q9LSAKRUWZ91",
		RefPeriod:    "2024-06-30",
		Module:       "kbc",
		Currency:     "EUR",
		Template:     template,
		RowCode:      "0010",
		ColCode:      "0010",
		DatapointID:  "dp31360",
		ValueNumeric: &v,
		FactValue:    "125000",
		Unit:         domain.UnitMonetary,
	}
}

func TestFactsHandlerListFacts(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Query", store.Filter{Entity: "KBC Group"}).Return(&services.FactPage{
			Facts: []domain.MergedFact{mergedFact(1, "EU OV1"), mergedFact(2, "EU KM1")},
			Total: 2,
		}, nil)

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/?entity=KBC+Group", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, float64(2), body["count"])
		assert.Equal(t, float64(2), body["total"])
		mockService.AssertExpectations(t)
	})

	t.Run("filters forwarded to the service", func(t *testing.T) {
		mockService := new(MockFactsService)
		want := store.Filter{
			RefPeriod:     "2024-06-30",
			Template:      "EU OV1",
			TemplateGroup: "Capital",
			Limit:         50,
			Offset:        100,
		}
		mockService.On("Query", want).Return(&services.FactPage{Facts: nil, Total: 0, Offset: 100}, nil)

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		target := "/?period=2024-06-30&template=EU+OV1&group=Capital&limit=50&offset=100"
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", target, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		mockService := new(MockFactsService)
		handler := newFactsHandler(t, mockService)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/?limit=abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "limit")
		mockService.AssertNotCalled(t, "Query", mock.Anything)
	})

	t.Run("limit beyond the contract maximum", func(t *testing.T) {
		mockService := new(MockFactsService)
		handler := newFactsHandler(t, mockService)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/?limit=999999", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "/errors/validation")
	})

	t.Run("store failure", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Query", store.Filter{}).Return(nil, errors.New("disk I/O error"))

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "/errors/internal")
	})
}

func TestFactsHandlerGetFact(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Get", int64(7)).Return(mergedFact(7, "EU LR2"), nil)

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/7", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeEnvelope(t, rec)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "EU LR2", data["template"])
	})

	t.Run("not found", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Get", int64(99)).Return(domain.MergedFact{}, fmt.Errorf("fact 99: %w", store.ErrNotFound))

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/99", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("non-numeric id", func(t *testing.T) {
		mockService := new(MockFactsService)
		handler := newFactsHandler(t, mockService)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "Get", mock.Anything)
	})
}

func TestFactsHandlerExport(t *testing.T) {
	t.Run("streams csv attachment", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Export", store.Filter{Template: "EU OV1"}, mock.Anything).
			Run(func(args mock.Arguments) {
				w := args.Get(1).(io.Writer)
				w.Write([]byte("\xEF\xBB\xBFid,entity\n1,KBC Group\n2,KBC Group\n"))
			}).
			Return(2, nil)

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/export?template=EU+OV1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Body.String(), "KBC Group")
	})

	t.Run("rejects bad filters before streaming", func(t *testing.T) {
		mockService := new(MockFactsService)
		handler := newFactsHandler(t, mockService)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/export?offset=x", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotContains(t, rec.Header().Get("Content-Type"), "text/csv")
		mockService.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
	})
}

func TestFactsHandlerSummary(t *testing.T) {
	mockService := new(MockFactsService)
	mockService.On("Summary").Return(store.Totals{Facts: 1200, Entities: 1, Periods: 3, Templates: 25}, nil)

	handler := newFactsHandler(t, mockService)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/summary", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1200), data["facts"])
	assert.Equal(t, float64(25), data["templates"])
}

func TestFactsHandlerDimensions(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		values  []string
		invoke  func(*FactsHandler, http.ResponseWriter, *http.Request)
	}{
		{"entities", "Entities", []string{"KBC Group"}, (*FactsHandler).ListEntities},
		{"periods", "Periods", []string{"2024-06-30", "2024-12-31"}, (*FactsHandler).ListPeriods},
		{"templates", "Templates", []string{"EU KM1", "EU OV1"}, (*FactsHandler).ListTemplates},
		{"groups", "Groups", []string{"Capital", "Liquidity"}, (*FactsHandler).ListGroups},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockFactsService)
			mockService.On(tt.method).Return(tt.values, nil)

			handler := newFactsHandler(t, mockService)
			rec := httptest.NewRecorder()
			tt.invoke(handler, rec, httptest.NewRequest("GET", "/api/"+tt.name, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, float64(len(tt.values)), body["count"])
		})
	}

	t.Run("list failure", func(t *testing.T) {
		mockService := new(MockFactsService)
		mockService.On("Entities").Return(nil, errors.New("no such table: merged_facts"))

		handler := newFactsHandler(t, mockService)
		rec := httptest.NewRecorder()
		handler.ListEntities(rec, httptest.NewRequest("GET", "/api/entities", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
