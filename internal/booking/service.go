package booking

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/nailbook/internal/model"
	"github.com/hitoshi/nailbook/internal/security"
)

// createdAtFormat は予約作成時刻の表示形式（UTC）。
const createdAtFormat = "2006-01-02 15:04:05"

// datePattern は予約日（ISO形式 YYYY-MM-DD）の検証パターン。
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Input は予約の作成・更新の入力。
type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Notes   string `json:"notes"`
}

// Service は予約管理のビジネスロジックを提供する。
// ストアへのアクセスはread-modify-writeのため、mutexで直列化する。
type Service struct {
	store     *Store
	sanitizer security.InputSanitizerService
	mu        sync.Mutex
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(store *Store) *Service {
	return &Service{
		store:     store,
		sanitizer: security.NewInputSanitizer(),
		now:       time.Now,
	}
}

// List は全予約を挿入順で返す。
func (s *Service) List() ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ReadAll()
}

// AvailableSlots は指定日の空き時間枠をカタログ順で返す。
// カタログの全枠から、その日にすでに予約されている時刻を除いたもの。
func (s *Service) AvailableSlots(date string) ([]string, error) {
	if date == "" {
		return nil, model.NewValidationError("日付を選択してください。")
	}
	if !isValidDate(date) {
		return nil, model.NewValidationError("日付の形式が正しくありません。")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	booked := make(map[string]bool)
	for _, b := range bookings {
		if b.Date == date {
			booked[b.Time] = true
		}
	}

	available := make([]string, 0, len(slotCatalog))
	for _, slot := range slotCatalog {
		if !booked[slot] {
			available = append(available, slot)
		}
	}

	return available, nil
}

// Create は新しい予約を作成する。
// IDと作成時刻はサーバー側で採番し、自由入力項目はHTMLを除去して保存する。
func (s *Service) Create(input Input) (*model.Booking, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	now := s.now()
	id, err := newBookingID(now)
	if err != nil {
		return nil, err
	}

	booking := model.Booking{
		ID:        id,
		Name:      s.sanitizer.Sanitize(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Service:   input.Service,
		Date:      input.Date,
		Time:      input.Time,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: now.UTC().Format(createdAtFormat),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	bookings = append(bookings, booking)
	if err := s.store.WriteAll(bookings); err != nil {
		return nil, err
	}

	slog.Info("booking created",
		slog.String("booking_id", booking.ID),
		slog.String("date", booking.Date),
		slog.String("time", booking.Time),
	)

	return &booking, nil
}

// Update は既存予約の内容を更新する。
// IDと作成時刻は変更しない。対象が存在しない場合はBookingNotFoundErrorを返す。
func (s *Service) Update(id string, input Input) (*model.Booking, error) {
	if id == "" {
		return nil, model.NewValidationError("予約IDを指定してください。")
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	for i := range bookings {
		if bookings[i].ID != id {
			continue
		}

		bookings[i].Name = s.sanitizer.Sanitize(input.Name)
		bookings[i].Email = strings.TrimSpace(input.Email)
		bookings[i].Phone = strings.TrimSpace(input.Phone)
		bookings[i].Service = input.Service
		bookings[i].Date = input.Date
		bookings[i].Time = input.Time
		bookings[i].Notes = s.sanitizer.Sanitize(input.Notes)

		if err := s.store.WriteAll(bookings); err != nil {
			return nil, err
		}

		slog.Info("booking updated", slog.String("booking_id", id))
		updated := bookings[i]
		return &updated, nil
	}

	return nil, model.NewBookingNotFoundError(id)
}

// Delete は予約を削除する。対象が存在しない場合はBookingNotFoundErrorを返す。
func (s *Service) Delete(id string) error {
	if id == "" {
		return model.NewValidationError("予約IDを指定してください。")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return err
	}

	for i := range bookings {
		if bookings[i].ID != id {
			continue
		}

		bookings = append(bookings[:i], bookings[i+1:]...)
		if err := s.store.WriteAll(bookings); err != nil {
			return err
		}

		slog.Info("booking deleted", slog.String("booking_id", id))
		return nil
	}

	return model.NewBookingNotFoundError(id)
}

// Filter は検索文字列で予約を絞り込む。
// 氏名・メールアドレス・電話番号・サービス名をスペースで連結した文字列に対して
// 大文字小文字を区別せず部分一致するものを返す。フィールド境界をまたぐ
// 検索文字列（例: "smith alice@example.com"）も一致する。
// 空文字列の場合は全件を返す。
func (s *Service) Filter(query string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matched := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		haystack := strings.ToLower(b.Name + " " + b.Email + " " + b.Phone + " " + b.Service)
		if strings.Contains(haystack, q) {
			matched = append(matched, b)
		}
	}

	return matched, nil
}

// ExportCSV は全予約をCSVとして書き出し、内容とファイル名を返す。
// 予約が1件もない場合はEmptyExportErrorを返す。
// 全フィールドをダブルクォートで囲み、値内のクォートは二重化する。
func (s *Service) ExportCSV() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.ReadAll()
	if err != nil {
		return nil, "", err
	}
	if len(bookings) == 0 {
		return nil, "", model.NewEmptyExportError()
	}

	var sb strings.Builder
	writeCSVRow(&sb, []string{"ID", "Name", "Email", "Phone", "Service", "Date", "Time", "Notes", "Created At"})
	for _, b := range bookings {
		writeCSVRow(&sb, []string{
			b.ID, b.Name, b.Email, b.Phone, b.Service, b.Date, b.Time, b.Notes, b.CreatedAt,
		})
	}

	filename := fmt.Sprintf("bookings_%s.csv", s.now().UTC().Format("2006_01_02_15_04_05"))

	slog.Info("bookings exported",
		slog.Int("count", len(bookings)),
		slog.String("filename", filename),
	)

	return []byte(sb.String()), filename, nil
}

// validate は予約入力を検証する。
func (s *Service) validate(input Input) error {
	if input.Name == "" || input.Email == "" || input.Phone == "" ||
		input.Service == "" || input.Date == "" || input.Time == "" {
		return model.NewValidationError("必須項目をすべて入力してください。")
	}
	if !isCatalogService(input.Service) {
		return model.NewValidationError("選択されたサービスが正しくありません。")
	}
	if !isValidDate(input.Date) {
		return model.NewValidationError("日付の形式が正しくありません。")
	}
	if !isCatalogSlot(input.Time) {
		return model.NewValidationError("選択された時間枠が正しくありません。")
	}
	return nil
}

// isValidDate はISO形式の実在する日付かを検証する。
func isValidDate(date string) bool {
	if !datePattern.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// writeCSVRow は1行分のフィールドをクォート付きで書き込む。
func writeCSVRow(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
}
