package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nailbook/internal/booking"
	"github.com/hitoshi/nailbook/internal/middleware"
	"github.com/hitoshi/nailbook/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	Filter(query string) ([]model.Booking, error)
	Create(input booking.Input) (*model.Booking, error)
	Update(id string, input booking.Input) (*model.Booking, error)
	Delete(id string) error
	AvailableSlots(date string) ([]string, error)
	ExportCSV() ([]byte, string, error)
}

// BookingMetrics は予約ハンドラーが記録するメトリクスのインターフェース。
type BookingMetrics interface {
	RecordBookingCreated()
	RecordBookingUpdated()
	RecordBookingDeleted()
	RecordExportRows(count int)
}

// BookingHandler は予約管理のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
	metrics BookingMetrics // nilの場合は記録しない
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface, metrics BookingMetrics) *BookingHandler {
	return &BookingHandler{
		service: service,
		metrics: metrics,
	}
}

// List は予約一覧を返す。queryパラメータがある場合は絞り込む。
// GET /api/bookings?query=xxx
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.Filter(r.URL.Query().Get("query"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings": bookings,
	})
}

// Create は予約を作成する。
// POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input booking.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}

	created, err := h.service.Create(input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBookingCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// Update は予約を更新する。
// PUT /api/bookings/{id}
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input booking.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}

	updated, err := h.service.Update(id, input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBookingUpdated()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// Delete は予約を削除する。
// DELETE /api/bookings/{id}
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(id); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBookingDeleted()
	}

	w.WriteHeader(http.StatusNoContent)
}

// Slots は指定日の空き時間枠を返す。
// GET /api/slots?date=YYYY-MM-DD
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	slots, err := h.service.AvailableSlots(date)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":  date,
		"slots": slots,
	})
}

// Export は全予約をCSVファイルとしてダウンロードさせる。
// GET /api/bookings/export
// 予約が1件もない場合はファイルではなく警告JSONを200で返す。
func (h *BookingHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.service.ExportCSV()
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmptyExport {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"warning": apiErr.Message,
				"code":    apiErr.Code,
			})
			return
		}
		middleware.WriteError(w, err)
		return
	}

	// ヘッダー行を除いた行数がエクスポート件数
	rows := 0
	for _, b := range data {
		if b == '\n' {
			rows++
		}
	}
	if rows > 0 {
		rows--
	}
	if h.metrics != nil {
		h.metrics.RecordExportRows(rows)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write CSV response", slog.String("error", err.Error()))
	}
}
