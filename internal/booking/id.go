package booking

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"
)

// newBookingID は予約IDを生成する。
// 形式は BOOKING_<エポックミリ秒>_<ランダム英数9文字> で、
// 時刻部分により挿入順ソートが可能になる。
func newBookingID(now time.Time) (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate booking ID: %w", err)
	}

	suffix := strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}

	return fmt.Sprintf("BOOKING_%d_%s", now.UnixMilli(), suffix), nil
}
