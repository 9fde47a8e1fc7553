package ruleparse

// The lexicon tables are the unit under test: keyword→category and
// keyword→type mappings live here, not inline in the extraction code.

// CategoryRule maps a keyword set to a display category. Rules are
// evaluated in order; the first match wins.
type CategoryRule struct {
	Name     string
	Keywords []string
}

// DefaultCategoryName is assigned when no rule matches.
const DefaultCategoryName = "Khác"

// CategoryRules is the ordered category lexicon for Vietnamese
// transaction phrases.
var CategoryRules = []CategoryRule{
	{
		Name: "Ăn uống",
		Keywords: []string{
			"ăn", "phở", "cơm", "bún", "bánh", "cà phê", "cafe", "trà sữa",
			"nhậu", "quán", "nhà hàng", "đồ ăn", "food", "lunch", "dinner",
			"breakfast", "coffee",
		},
	},
	{
		Name: "Di chuyển",
		Keywords: []string{
			"grab", "be ", "taxi", "xe ôm", "xăng", "gửi xe", "xe buýt",
			"bus", "tàu", "máy bay", "vé xe", "đi lại", "uber",
		},
	},
	{
		Name: "Mua sắm",
		Keywords: []string{
			"mua", "sách", "quần áo", "giày", "túi", "shopee", "lazada",
			"tiki", "siêu thị", "tạp hóa", "shopping",
		},
	},
	{
		Name: "Giải trí",
		Keywords: []string{
			"phim", "game", "karaoke", "nhạc", "concert", "net", "bida",
			"du lịch", "netflix", "spotify",
		},
	},
}

// IncomeKeywords mark a segment as income when present.
var IncomeKeywords = []string{
	"lương", "thưởng", "thu nhập", "nhận tiền", "được trả", "bán được",
	"hoàn tiền", "salary", "bonus", "refund",
}

// TransferKeywords mark a segment as a transfer between wallets.
var TransferKeywords = []string{
	"chuyển khoản", "chuyển tiền", "chuyển cho", "gửi tiết kiệm",
	"rút tiền", "nạp ví", "transfer",
}

// ExpenseKeywords are spending verbs used only by count estimation;
// expense is already the default transaction type.
var ExpenseKeywords = []string{
	"mua", "trả", "đóng", "ăn", "uống", "đi", "thanh toán", "chi",
}
