package httpapi

import (
	"fmt"
	"net/http"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
	"github.com/ARodriguezHacks/covid-calendar/internal/service"

	"go.uber.org/zap"
)

const householdsPrefix = "/household/api/v1/households"

// HouseholdHandler 家庭 API Handler
type HouseholdHandler struct {
	svc    *service.HouseholdService
	logger *zap.Logger
}

// NewHouseholdHandler 创建家庭 Handler
func NewHouseholdHandler(svc *service.HouseholdService, logger *zap.Logger) *HouseholdHandler {
	return &HouseholdHandler{
		svc:    svc,
		logger: logger,
	}
}

// ========== 请求体 ==========

type householdPayload struct {
	Name string `json:"name" validate:"required,max=200"`
}

type memberPayload struct {
	Name        string            `json:"name" validate:"required,max=200"`
	CovidEvents map[string]string `json:"covid_events" validate:"omitempty,dive,keys,covidevent,endkeys,omitempty,datetime=2006-01-02"`
}

type memberUpdatePayload struct {
	Name        string            `json:"name" validate:"omitempty,max=200"`
	CovidEvents map[string]string `json:"covid_events" validate:"omitempty,dive,keys,covidevent,endkeys,omitempty,datetime=2006-01-02"`
}

// eventPayload date 为空字符串表示清除该事件
type eventPayload struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type exposurePayload struct {
	ContagiousPerson  string `json:"contagious_person" validate:"required,uuid4"`
	QuarantinedPerson string `json:"quarantined_person" validate:"required,uuid4,nefield=ContagiousPerson"`
	Date              string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ServeHTTP 路由分发
//
//	POST   /households
//	GET    /households/{hid}
//	POST   /households/{hid}/members
//	GET    /households/{hid}/members/{pid}
//	PUT    /households/{hid}/members/{pid}
//	DELETE /households/{hid}/members/{pid}
//	PUT    /households/{hid}/members/{pid}/events/{event}
//	GET    /households/{hid}/members/{pid}/narrative
//	GET    /households/{hid}/members/{pid}/partners
//	GET    /households/{hid}/exposures
//	PUT    /households/{hid}/exposures
//	GET    /households/{hid}/guidance
//	GET    /households/{hid}/guidance/export
func (h *HouseholdHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, householdsPrefix)

	// id 均为 UUID；格式不对的 id 不可能存在，直接 404，不下发到仓库
	if len(seg) >= 1 && !isPathID(seg[0]) {
		writeJSON(w, http.StatusNotFound, Fail("household not found"))
		return
	}
	if len(seg) >= 3 && seg[1] == "members" && !isPathID(seg[2]) {
		writeJSON(w, http.StatusNotFound, Fail("member not found"))
		return
	}

	switch {
	case len(seg) == 0:
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodPost: h.CreateHousehold,
		})
	case len(seg) == 1:
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.GetHousehold(w, r, seg[0]) },
		})
	case len(seg) == 2 && seg[1] == "members":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) { h.AddMember(w, r, seg[0]) },
		})
	case len(seg) == 3 && seg[1] == "members":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet:    func(w http.ResponseWriter, r *http.Request) { h.GetMemberGuidance(w, r, seg[0], seg[2]) },
			http.MethodPut:    func(w http.ResponseWriter, r *http.Request) { h.UpdateMember(w, r, seg[0], seg[2]) },
			http.MethodDelete: func(w http.ResponseWriter, r *http.Request) { h.RemoveMember(w, r, seg[0], seg[2]) },
		})
	case len(seg) == 5 && seg[1] == "members" && seg[3] == "events":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodPut: func(w http.ResponseWriter, r *http.Request) { h.SetEvent(w, r, seg[0], seg[2], seg[4]) },
		})
	case len(seg) == 4 && seg[1] == "members" && seg[3] == "narrative":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.Narrative(w, r, seg[0], seg[2]) },
		})
	case len(seg) == 4 && seg[1] == "members" && seg[3] == "partners":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.Partners(w, r, seg[0], seg[2]) },
		})
	case len(seg) == 2 && seg[1] == "exposures":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.ListExposures(w, r, seg[0]) },
			http.MethodPut: func(w http.ResponseWriter, r *http.Request) { h.RecordExposureDate(w, r, seg[0]) },
		})
	case len(seg) == 2 && seg[1] == "guidance":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.Guidance(w, r, seg[0]) },
		})
	case len(seg) == 3 && seg[1] == "guidance" && seg[2] == "export":
		h.dispatch(w, r, map[string]http.HandlerFunc{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.ExportGuidance(w, r, seg[0]) },
		})
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

func (h *HouseholdHandler) dispatch(w http.ResponseWriter, r *http.Request, byMethod map[string]http.HandlerFunc) {
	if fn, ok := byMethod[r.Method]; ok {
		fn(w, r)
		return
	}
	writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
}

// writeError 参数错误 400，不存在 404，其他 500
func (h *HouseholdHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case service.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case service.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal server error"))
	}
}

// decode 读取并校验请求体；失败时已写出 400
func (h *HouseholdHandler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid body: %v", err)))
		return false
	}
	if err := validatePayload(out); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return false
	}
	return true
}

// ========== 家庭 ==========

// CreateHousehold 创建家庭
func (h *HouseholdHandler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	var payload householdPayload
	if !h.decode(w, r, &payload) {
		return
	}

	household, err := h.svc.CreateHousehold(r.Context(), service.CreateHouseholdRequest{Name: payload.Name})
	if err != nil {
		h.writeError(w, "CreateHousehold", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(household))
}

// GetHousehold 家庭视图
func (h *HouseholdHandler) GetHousehold(w http.ResponseWriter, r *http.Request, householdID string) {
	view, err := h.svc.GetHousehold(r.Context(), householdID)
	if err != nil {
		h.writeError(w, "GetHousehold", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// ========== 成员 ==========

// AddMember 新增成员
func (h *HouseholdHandler) AddMember(w http.ResponseWriter, r *http.Request, householdID string) {
	var payload memberPayload
	if !h.decode(w, r, &payload) {
		return
	}

	res, err := h.svc.AddMember(r.Context(), householdID, service.AddMemberRequest{
		Name:        payload.Name,
		CovidEvents: toCovidEvents(payload.CovidEvents),
	})
	if err != nil {
		h.writeError(w, "AddMember", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(res))
}

// GetMemberGuidance 成员及其隔离结束日期
func (h *HouseholdHandler) GetMemberGuidance(w http.ResponseWriter, r *http.Request, householdID, personID string) {
	res, err := h.svc.MemberGuidance(r.Context(), householdID, personID)
	if err != nil {
		h.writeError(w, "GetMemberGuidance", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// UpdateMember 更新姓名和/或事件日期
func (h *HouseholdHandler) UpdateMember(w http.ResponseWriter, r *http.Request, householdID, personID string) {
	var payload memberUpdatePayload
	if !h.decode(w, r, &payload) {
		return
	}

	res, err := h.svc.UpdateMember(r.Context(), householdID, personID, service.UpdateMemberRequest{
		Name:        payload.Name,
		CovidEvents: toCovidEvents(payload.CovidEvents),
	})
	if err != nil {
		h.writeError(w, "UpdateMember", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// RemoveMember 删除成员，返回被删除的暴露记录
func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request, householdID, personID string) {
	removed, err := h.svc.RemoveMember(r.Context(), householdID, personID)
	if err != nil {
		h.writeError(w, "RemoveMember", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"removed_exposures": removed}))
}

// SetEvent 设置或清除单个事件日期
func (h *HouseholdHandler) SetEvent(w http.ResponseWriter, r *http.Request, householdID, personID, eventName string) {
	event, err := domain.ParseCovidEventName(eventName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	var payload eventPayload
	if !h.decode(w, r, &payload) {
		return
	}

	res, err := h.svc.SetEvent(r.Context(), householdID, personID, event, domain.ParseDate(payload.Date))
	if err != nil {
		h.writeError(w, "SetEvent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// Narrative 成员暴露描述
func (h *HouseholdHandler) Narrative(w http.ResponseWriter, r *http.Request, householdID, personID string) {
	lines, err := h.svc.Narrative(r.Context(), householdID, personID)
	if err != nil {
		h.writeError(w, "Narrative", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(lines))
}

// Partners 与成员传染状态相反的成员
func (h *HouseholdHandler) Partners(w http.ResponseWriter, r *http.Request, householdID, personID string) {
	partners, err := h.svc.ExposurePartners(r.Context(), householdID, personID)
	if err != nil {
		h.writeError(w, "Partners", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(partners))
}

// ========== 暴露记录 ==========

// ListExposures 家庭暴露记录
func (h *HouseholdHandler) ListExposures(w http.ResponseWriter, r *http.Request, householdID string) {
	exposures, err := h.svc.ListExposures(r.Context(), householdID)
	if err != nil {
		h.writeError(w, "ListExposures", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(exposures))
}

// RecordExposureDate 确定或清除暴露日期
func (h *HouseholdHandler) RecordExposureDate(w http.ResponseWriter, r *http.Request, householdID string) {
	var payload exposurePayload
	if !h.decode(w, r, &payload) {
		return
	}

	updated, err := h.svc.RecordExposureDate(r.Context(), householdID, service.RecordExposureDateRequest{
		ContagiousPerson:  payload.ContagiousPerson,
		QuarantinedPerson: payload.QuarantinedPerson,
		Date:              domain.ParseDate(payload.Date),
	})
	if err != nil {
		h.writeError(w, "RecordExposureDate", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(updated))
}

// ========== 指导 ==========

// Guidance 家庭隔离指导
func (h *HouseholdHandler) Guidance(w http.ResponseWriter, r *http.Request, householdID string) {
	results, err := h.svc.Guidance(r.Context(), householdID)
	if err != nil {
		h.writeError(w, "Guidance", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(results))
}

// ExportGuidance 导出 xlsx
func (h *HouseholdHandler) ExportGuidance(w http.ResponseWriter, r *http.Request, householdID string) {
	results, err := h.svc.Guidance(r.Context(), householdID)
	if err != nil {
		h.writeError(w, "ExportGuidance", err)
		return
	}

	data, err := GenerateGuidanceExport(results)
	if err != nil {
		h.writeError(w, "ExportGuidance", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="guidance-%s.xlsx"`, householdID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func toCovidEvents(raw map[string]string) domain.CovidEvents {
	if len(raw) == 0 {
		return nil
	}
	events := make(domain.CovidEvents, len(raw))
	for name, date := range raw {
		events[domain.CovidEventName(name)] = domain.ParseDate(date)
	}
	return events
}
