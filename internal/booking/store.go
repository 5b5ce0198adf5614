// Package booking は予約管理のドメインロジックと永続化を提供する。
package booking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hitoshi/nailbook/internal/model"
)

// Store は予約リストをJSONファイル1枚に永続化するストア。
// 元設計のlocalStorageと同じく、単一の名前付きスロットに予約列全体を
// シリアライズし、変更のたびにread-modify-writeで全体を書き戻す。
// プロセス内の単一ライターを前提とし、マージは行わない（last-write-wins）。
type Store struct {
	path string
}

// NewStore はStoreを生成する。pathは予約JSONファイルのパス。
func NewStore(path string) *Store {
	return &Store{path: path}
}

// ReadAll は全予約を挿入順で読み込む。
// ファイルが存在しない場合は空のリストを返す。
func (s *Store) ReadAll() ([]model.Booking, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Booking{}, nil
		}
		return nil, fmt.Errorf("failed to read booking store: %w", err)
	}

	var bookings []model.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode booking store: %w", err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	return bookings, nil
}

// WriteAll は全予約をシリアライズして書き戻す。
// 一時ファイルへの書き込みとrenameで、書き込み途中のファイルが
// 読まれないようにする。
func (s *Store) WriteAll(bookings []model.Booking) error {
	data, err := json.MarshalIndent(bookings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode booking store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create booking store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "bookings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write booking store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace booking store: %w", err)
	}

	return nil
}
