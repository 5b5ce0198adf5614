package model

// Booking はネイルサロンの予約1件を表す。
// IDはクライアント形式（BOOKING_<ミリ秒タイムスタンプ>_<ランダム接尾辞>）を踏襲する。
// CreatedAtは "YYYY-MM-DD HH:MM:SS"（UTC）形式の文字列として保持する。
type Booking struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Service   string `json:"service"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"createdAt"`
}
