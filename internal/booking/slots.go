package booking

// slotCatalog は予約可能な時間枠のカタログ。
// 営業時間は9:00〜11:30と13:00〜17:30（昼休みを除く）の30分刻み。
// 順序は昇順で固定し、空き枠の計算でもこの順序を保つ。
var slotCatalog = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30",
	"16:00", "16:30", "17:00", "17:30",
}

// serviceCatalog は提供しているネイルサービスの一覧。
var serviceCatalog = []string{
	"Manicure",
	"Pedicure",
	"Gel Nails",
	"Acrylic Nails",
	"Nail Art",
	"Spa Treatment",
}

// SlotCatalog は時間枠カタログのコピーを昇順で返す。
func SlotCatalog() []string {
	out := make([]string, len(slotCatalog))
	copy(out, slotCatalog)
	return out
}

// ServiceCatalog は提供サービス一覧のコピーを返す。
func ServiceCatalog() []string {
	out := make([]string, len(serviceCatalog))
	copy(out, serviceCatalog)
	return out
}

// isCatalogSlot は指定の時刻文字列がカタログに含まれるかを返す。
func isCatalogSlot(t string) bool {
	for _, s := range slotCatalog {
		if s == t {
			return true
		}
	}
	return false
}

// isCatalogService は指定のサービス名が提供サービスに含まれるかを返す。
func isCatalogService(name string) bool {
	for _, s := range serviceCatalog {
		if s == name {
			return true
		}
	}
	return false
}
