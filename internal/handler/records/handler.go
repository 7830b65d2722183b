package records

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/analysis/intent"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/store"
	"github.com/zhouzirui/talentscout/backend/pkg/utils"
)

// Handler 候选人字段与已保存记录的HTTP处理器
type Handler struct {
	records store.RecordStore
	logger  *zap.Logger
}

// New 创建records处理器
func New(records store.RecordStore, logger *zap.Logger) *Handler {
	return &Handler{
		records: records,
		logger:  logging.OrNop(logger).Named("records"),
	}
}

// RegisterRoutes 注册字段与记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/fields", h.handleListFields)
	r.Get("/records", h.handleListRecords)
}

// FieldInfo describes one collected field and the phrase a question must contain to ask for it.
type FieldInfo struct {
	Name     string `json:"name"`
	Question string `json:"question"`
}

// Fields lists the collected fields in record order.
func Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(candidate.Fields))
	for _, f := range candidate.Fields {
		out = append(out, FieldInfo{
			Name:     f.Name(),
			Question: strings.ToUpper(intent.Label(f)),
		})
	}
	return out
}

// handleListFields 列出所有字段
func (h *Handler) handleListFields(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, Fields())
}

// handleListRecords 列出已保存的候选人记录
func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := h.records.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list records", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if list == nil {
		list = []candidate.Record{}
	}
	utils.RespondJSON(w, http.StatusOK, list)
}
