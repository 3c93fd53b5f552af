package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/options"
)

// stubExchange scripts the orchestrator responses per test.
type stubExchange struct {
	sendStatuses func(company, car string, messages []model.Message) (string, error)
	sendCommands func(company, car string, messages []model.Message) error
	listStatuses func(company, car string, since int64, wait bool) ([]model.Message, error)
	listCommands func(company, car string, since int64, wait bool) ([]model.Message, error)
	availCars    func(since int64, wait bool) ([]model.AvailableCar, error)
	availDevices func(company, car string, moduleID *uint32) ([]model.ModuleDevices, error)
}

func (s *stubExchange) SendStatuses(ctx context.Context, company, car string, messages []model.Message) (string, error) {
	return s.sendStatuses(company, car, messages)
}

func (s *stubExchange) SendCommands(ctx context.Context, company, car string, messages []model.Message) error {
	return s.sendCommands(company, car, messages)
}

func (s *stubExchange) ListStatuses(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error) {
	return s.listStatuses(company, car, since, wait)
}

func (s *stubExchange) ListCommands(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error) {
	return s.listCommands(company, car, since, wait)
}

func (s *stubExchange) AvailableCars(ctx context.Context, since int64, wait bool) ([]model.AvailableCar, error) {
	return s.availCars(since, wait)
}

func (s *stubExchange) AvailableDevices(ctx context.Context, company, car string, moduleID *uint32) ([]model.ModuleDevices, error) {
	return s.availDevices(company, car, moduleID)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T, svc Exchange, opts *options.HttpOptions) http.Handler {
	t.Helper()
	if opts == nil {
		opts = options.NewHttpOptions()
	}
	return NewServer(opts, svc, stubPinger{}, log.NewNopLogger()).Handler()
}

func statusBody(t *testing.T) string {
	t.Helper()
	return `[{"device_id":{"module_id":7,"type":8,"role":"ignition","name":"Ignition"},` +
		`"payload":{"message_type":"STATUS","encoding":"JSON","data":{"state":"on"}}}]`
}

func TestSendStatusesEndpoint(t *testing.T) {
	var gotCompany, gotCar string
	svc := &stubExchange{
		sendStatuses: func(company, car string, messages []model.Message) (string, error) {
			gotCompany, gotCar = company, car
			require.Len(t, messages, 1)
			assert.Equal(t, "ignition", messages[0].DeviceID.Role)
			return "warn-line", nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/status/acme/truck1", strings.NewReader(statusBody(t)))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", gotCompany)
	assert.Equal(t, "truck1", gotCar)

	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "warn-line", resp.Warnings)
}

func TestSendStatusesMalformedBody(t *testing.T) {
	svc := &stubExchange{
		sendStatuses: func(string, string, []model.Message) (string, error) {
			t.Fatal("service must not be called for a malformed body")
			return "", nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/status/acme/truck1", strings.NewReader("{not json"))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCommandsNotFound(t *testing.T) {
	svc := &stubExchange{
		sendCommands: func(string, string, []model.Message) error {
			return fmt.Errorf("%w: car acme/ghost is not connected", util.ErrNotFound)
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/command/acme/ghost", strings.NewReader("[]"))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "not connected")
}

func TestListStatusesParams(t *testing.T) {
	svc := &stubExchange{
		listStatuses: func(company, car string, since int64, wait bool) ([]model.Message, error) {
			assert.Equal(t, "acme", company)
			assert.Equal(t, "truck1", car)
			assert.Equal(t, int64(12345), since)
			assert.True(t, wait)
			return []model.Message{{Timestamp: 12345}}, nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/acme/truck1?since=12345&wait=true", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
}

func TestListStatusesDefaultsToFullHistory(t *testing.T) {
	svc := &stubExchange{
		listStatuses: func(company, car string, since int64, wait bool) ([]model.Message, error) {
			assert.Zero(t, since)
			assert.False(t, wait)
			return []model.Message{}, nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/acme/truck1", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestListStatusesBadSince(t *testing.T) {
	handler := newTestServer(t, &stubExchange{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/acme/truck1?since=yesterday", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCommandsUnknownCarAnswersEmptyBatch(t *testing.T) {
	svc := &stubExchange{
		listCommands: func(string, string, int64, bool) ([]model.Message, error) {
			return nil, fmt.Errorf("%w: car acme/ghost is not connected", util.ErrNotFound)
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/command/acme/ghost", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()),
		"list endpoints answer 404 with an empty batch body")
}

func TestListStatusesUnavailable(t *testing.T) {
	svc := &stubExchange{
		listStatuses: func(string, string, int64, bool) ([]model.Message, error) {
			return nil, util.ErrUnavailable
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/acme/truck1", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAvailableCarsEndpoint(t *testing.T) {
	svc := &stubExchange{
		availCars: func(since int64, wait bool) ([]model.AvailableCar, error) {
			assert.Equal(t, int64(99), since)
			return []model.AvailableCar{{Company: "acme", Name: "truck1", ConnectedAt: 100}}, nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cars?since=99", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.AvailableCar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].ConnectedAt)
}

func TestAvailableDevicesEndpoint(t *testing.T) {
	svc := &stubExchange{
		availDevices: func(company, car string, moduleID *uint32) ([]model.ModuleDevices, error) {
			assert.Nil(t, moduleID)
			return []model.ModuleDevices{{ModuleID: 7}}, nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/available-devices/acme/truck1", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.ModuleDevices
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
}

func TestAvailableDevicesSingleModule(t *testing.T) {
	svc := &stubExchange{
		availDevices: func(company, car string, moduleID *uint32) ([]model.ModuleDevices, error) {
			require.NotNil(t, moduleID)
			assert.Equal(t, uint32(7), *moduleID)
			return []model.ModuleDevices{{ModuleID: 7, DeviceList: []model.DeviceID{{ModuleID: 7, Type: 8, Role: "ignition"}}}}, nil
		},
	}
	handler := newTestServer(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/available-devices/acme/truck1?module_id=7", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.ModuleDevices
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), "single-module lookup answers with the module object")
	assert.Equal(t, uint32(7), got.ModuleID)
}

func TestAvailableDevicesBadModuleID(t *testing.T) {
	handler := newTestServer(t, &stubExchange{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/available-devices/acme/truck1?module_id=-1", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyGate(t *testing.T) {
	opts := options.NewHttpOptions()
	opts.APIKey = "sesame"
	svc := &stubExchange{
		availCars: func(int64, bool) ([]model.AvailableCar, error) {
			return []model.AvailableCar{}, nil
		},
	}
	handler := newTestServer(t, svc, opts)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing key")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil)
	req.Header.Set("X-API-Key", "wrong")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong key")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil)
	req.Header.Set("X-API-Key", "sesame")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open regardless of the key.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	handler := NewServer(options.NewHttpOptions(), &stubExchange{}, stubPinger{}, log.NewNopLogger()).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := NewServer(options.NewHttpOptions(), &stubExchange{}, stubPinger{err: util.ErrUnavailable}, log.NewNopLogger()).Handler()
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
