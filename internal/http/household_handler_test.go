package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
	"github.com/ARodriguezHacks/covid-calendar/internal/evaluator"
	"github.com/ARodriguezHacks/covid-calendar/internal/repository"
	"github.com/ARodriguezHacks/covid-calendar/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) *Router {
	t.Helper()
	logger := zap.NewNop()
	svc := service.NewHouseholdService(
		repository.NewMemoryHouseholdRepo(),
		evaluator.NewEvaluator(evaluator.DefaultPolicy(), logger),
		nil, nil, nil, logger,
	)
	r := NewRouter(logger)
	r.RegisterHouseholdRoutes(NewHouseholdHandler(svc, logger))
	r.RegisterOpsRoutes(nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResult[T any](t *testing.T, rr *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var out Result[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func createHousehold(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, householdsPrefix, `{"name":"Smith"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decodeResult[domain.Household](t, rr)
	require.Equal(t, ResultSuccess, res.Code)
	return res.Result.HouseholdID
}

func addMember(t *testing.T, h http.Handler, hid, body string) service.MemberUpdate {
	t.Helper()
	rr := do(t, h, http.MethodPost, householdsPrefix+"/"+hid+"/members", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeResult[service.MemberUpdate](t, rr).Result
}

func TestHouseholdAPI_EndToEnd(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)

	alice := addMember(t, r, hid, `{"name":"Alice"}`).Person
	bob := addMember(t, r, hid, `{"name":"Bob"}`).Person

	// Alice 出现症状
	rr := do(t, r, http.MethodPut,
		householdsPrefix+"/"+hid+"/members/"+alice.ID+"/events/SymptomsStart", `{"date":"2021-01-01"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	upd := decodeResult[service.MemberUpdate](t, rr).Result
	assert.True(t, upd.Contagious)
	require.Len(t, upd.Changes.ToAdd, 1)
	assert.Equal(t, bob.ID, upd.Changes.ToAdd[0].QuarantinedPerson)

	// 暴露记录
	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/exposures", "")
	require.Equal(t, http.StatusOK, rr.Code)
	exposures := decodeResult[[]domain.ExposureEvent](t, rr).Result
	require.Len(t, exposures, 1)
	assert.True(t, exposures[0].Ongoing)

	// 指导：Alice 2021-01-11，Bob 无
	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/guidance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	guidance := decodeResult[[]domain.GuidanceResult](t, rr).Result
	require.Len(t, guidance, 2)
	require.NotNil(t, guidance[0].Date)
	assert.Equal(t, "2021-01-11", guidance[0].Date.String())
	assert.Nil(t, guidance[1].Date)
	assert.Contains(t, rr.Body.String(), `"date":null`)

	// 确定暴露日期
	rr = do(t, r, http.MethodPut, householdsPrefix+"/"+hid+"/exposures",
		`{"contagious_person":"`+alice.ID+`","quarantined_person":"`+bob.ID+`","date":"2021-01-02"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/members/"+bob.ID+"/narrative", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Bob exposed to Alice at 2021-01-02"}, decodeResult[[]string](t, rr).Result)

	// 家庭视图
	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid, "")
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeResult[service.HouseholdView](t, rr).Result
	assert.Len(t, view.Members, 2)
	assert.Len(t, view.Exposures, 1)

	// 删除 Bob
	rr = do(t, r, http.MethodDelete, householdsPrefix+"/"+hid+"/members/"+bob.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/exposures", "")
	assert.Empty(t, decodeResult[[]domain.ExposureEvent](t, rr).Result)
}

func TestHouseholdAPI_AddMemberWithEvents(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)

	res := addMember(t, r, hid, `{"name":"Alice","covid_events":{"PositiveTest":"2021-01-03","SymptomsEnd":""}}`)
	assert.True(t, res.Contagious)
	assert.Equal(t, "2021-01-03", res.Person.CovidEvents.Get(domain.PositiveTest).String())

	rr := do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/members/"+res.Person.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	one := decodeResult[domain.GuidanceResult](t, rr).Result
	require.NotNil(t, one.Date)
	assert.Equal(t, "2021-01-13", one.Date.String())
}

func TestHouseholdAPI_UpdateMemberAndPartners(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)
	alice := addMember(t, r, hid, `{"name":"Alice"}`).Person
	addMember(t, r, hid, `{"name":"Bob"}`)

	rr := do(t, r, http.MethodPut, householdsPrefix+"/"+hid+"/members/"+alice.ID,
		`{"name":"Alicia","covid_events":{"PositiveTest":"2021-01-05"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	upd := decodeResult[service.MemberUpdate](t, rr).Result
	assert.Equal(t, "Alicia", upd.Person.Name)

	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/members/"+alice.ID+"/partners", "")
	require.Equal(t, http.StatusOK, rr.Code)
	partners := decodeResult[[]domain.Person](t, rr).Result
	require.Len(t, partners, 1)
	assert.Equal(t, "Bob", partners[0].Name)
}

func TestHouseholdAPI_ValidationErrors(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)
	alice := addMember(t, r, hid, `{"name":"Alice"}`).Person

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"empty household name", http.MethodPost, householdsPrefix, `{"name":""}`, "name is required"},
		{"empty body", http.MethodPost, householdsPrefix, ``, "invalid body"},
		{"malformed json", http.MethodPost, householdsPrefix + "/" + hid + "/members", `{"name":`, "invalid body"},
		{"long name", http.MethodPost, householdsPrefix + "/" + hid + "/members", `{"name":"` + strings.Repeat("x", 201) + `"}`, "at most 200"},
		{"unknown event in map", http.MethodPost, householdsPrefix + "/" + hid + "/members", `{"name":"Bob","covid_events":{"Fever":"2021-01-01"}}`, "not a known covid event"},
		{"malformed date in map", http.MethodPost, householdsPrefix + "/" + hid + "/members", `{"name":"Bob","covid_events":{"PositiveTest":"01/02/2021"}}`, "YYYY-MM-DD"},
		{"unknown event in path", http.MethodPut, householdsPrefix + "/" + hid + "/members/" + alice.ID + "/events/Fever", `{"date":"2021-01-01"}`, "unknown covid event"},
		{"malformed event date", http.MethodPut, householdsPrefix + "/" + hid + "/members/" + alice.ID + "/events/PositiveTest", `{"date":"2021-13-40"}`, "YYYY-MM-DD"},
		{"non uuid exposure", http.MethodPut, householdsPrefix + "/" + hid + "/exposures", `{"contagious_person":"a","quarantined_person":"b"}`, "must be a UUID"},
		{"self exposure", http.MethodPut, householdsPrefix + "/" + hid + "/exposures", `{"contagious_person":"` + alice.ID + `","quarantined_person":"` + alice.ID + `"}`, "quarantined_person"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			res := decodeResult[any](t, rr)
			assert.Equal(t, ResultError, res.Code)
			assert.Contains(t, res.Message, tc.want)
		})
	}
}

func TestHouseholdAPI_NotFoundAndMethods(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)

	rr := do(t, r, http.MethodGet, householdsPrefix+"/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodPut, householdsPrefix+"/"+hid+"/members/nobody/events/PositiveTest", `{"date":"2021-01-01"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/members/nobody/narrative", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// 合法 UUID 但不存在
	rr = do(t, r, http.MethodGet, householdsPrefix+"/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, r, http.MethodDelete, householdsPrefix+"/"+hid+"/members/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodDelete, householdsPrefix+"/"+hid, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, r, http.MethodGet, householdsPrefix, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// 非 UUID 的 id 在进入仓库前即返回 404（Postgres 对 UUID 列会报 22P02）
func TestHouseholdAPI_MalformedPathIDs(t *testing.T) {
	repo := &recordingRepo{HouseholdRepository: repository.NewMemoryHouseholdRepo()}
	svc := service.NewHouseholdService(repo, nil, nil, nil, nil, zap.NewNop())
	r := NewRouter(zap.NewNop())
	r.RegisterHouseholdRoutes(NewHouseholdHandler(svc, zap.NewNop()))
	hid := createHousehold(t, r)
	repo.calls = 0

	paths := []string{
		householdsPrefix + "/foo",
		householdsPrefix + "/foo/guidance",
		householdsPrefix + "/" + hid + "/members/bar",
		householdsPrefix + "/" + hid + "/members/bar/narrative",
	}
	for _, path := range paths {
		rr := do(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		res := decodeResult[any](t, rr)
		assert.Equal(t, ResultError, res.Code, path)
	}
	assert.Zero(t, repo.calls)
}

type recordingRepo struct {
	repository.HouseholdRepository
	calls int
}

func (r *recordingRepo) GetHousehold(ctx context.Context, householdID string) (*domain.Household, error) {
	r.calls++
	return r.HouseholdRepository.GetHousehold(ctx, householdID)
}

func (r *recordingRepo) ListMembers(ctx context.Context, householdID string) ([]*domain.Person, error) {
	r.calls++
	return r.HouseholdRepository.ListMembers(ctx, householdID)
}

func TestHouseholdAPI_ExportGuidance(t *testing.T) {
	r := setupRouter(t)
	hid := createHousehold(t, r)
	addMember(t, r, hid, `{"name":"Alice","covid_events":{"SymptomsStart":"2021-01-01","SymptomsEnd":"2021-01-15"}}`)
	addMember(t, r, hid, `{"name":"Bob"}`)

	rr := do(t, r, http.MethodGet, householdsPrefix+"/"+hid+"/guidance/export", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "guidance-"+hid+".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(guidanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, GuidanceExportHeader, rows[0])
	assert.Equal(t, "Alice", rows[1][0])
	assert.Equal(t, "Yes", rows[1][5])
	assert.Equal(t, "2021-01-16", rows[1][6])
	assert.Equal(t, "Bob", rows[2][0])
	assert.Equal(t, "No", rows[2][5])
	// Bob 无可用指导：最后一列为空（GetRows 会截掉行尾空单元格）
	assert.Len(t, rows[2], 6)
}

func TestOpsRoutes(t *testing.T) {
	r := setupRouter(t)

	rr := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	health := decodeResult[HealthStatus](t, rr)
	assert.Equal(t, ResultSuccess, health.Code)
	assert.Equal(t, "healthy", health.Result.Status)

	rr = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# metrics")
}

func TestHealthz_ReportsDependencies(t *testing.T) {
	connected := true
	health := NewHealthHandler(zap.NewNop())
	health.Register("database", func(context.Context) error { return nil })
	health.Register("mqtt", func(context.Context) error {
		if !connected {
			return errors.New("not connected")
		}
		return nil
	})
	health.Register("redis", nil)

	r := NewRouter(zap.NewNop())
	r.RegisterOpsRoutes(health, nil)

	rr := do(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	ok := decodeResult[HealthStatus](t, rr)
	assert.Equal(t, ResultSuccess, ok.Code)
	assert.Equal(t, "healthy", ok.Result.Status)
	assert.Equal(t, map[string]string{"database": "healthy", "mqtt": "healthy"}, ok.Result.Services)

	connected = false
	rr = do(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	bad := decodeResult[HealthStatus](t, rr)
	assert.Equal(t, ResultError, bad.Code)
	assert.Equal(t, "unhealthy", bad.Result.Status)
	assert.Equal(t, "unhealthy: not connected", bad.Result.Services["mqtt"])

	rr = do(t, r, http.MethodPost, "/healthz", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
