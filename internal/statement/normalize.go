package statement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bookkeeping-go/internal/apperr"
	"bookkeeping-go/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Largest serial excelize accepts (9999-12-31).
const maxExcelSerial = 2958465

// Entry is a normalized statement line ready to be stored.
type Entry struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    *string
}

type Options struct {
	// RejectFuture fails rows dated after Now.
	RejectFuture bool
	Now          func() time.Time
}

// Normalize converts raw rows into entries. The first invalid row fails the
// whole batch; no rows are skipped.
func Normalize(rows []Row, opts Options) ([]Entry, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		date, err := ParseDate(row.Get(ColDate))
		if err != nil {
			return nil, apperr.Newf(apperr.InvalidDate, "row %d: %v", row.Line, err)
		}
		if opts.RejectFuture && date.After(now()) {
			return nil, apperr.Newf(apperr.InvalidDate, "row %d: date %s is in the future", row.Line, date.Format("2006-01-02"))
		}

		amount, err := ParseAmount(row.Get(ColAmount))
		if err != nil {
			return nil, apperr.Newf(apperr.InvalidAmount, "row %d: %v", row.Line, err)
		}

		e := Entry{
			Date:        date,
			Description: Truncate(row.Get(ColDescription), models.MaxDescriptionLength),
			Amount:      amount,
		}
		if cat := strings.TrimSpace(row.Get(ColCategory)); cat != "" {
			e.Category = &cat
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseDate accepts the common statement layouts and Excel serial dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var amountNoise = strings.NewReplacer(
	"$", "", "£", "", "€", "", "₹", "", "¥", "",
	",", "", " ", "", "\u00a0", "",
)

// ParseAmount coerces a statement amount to a signed two-decimal value.
// Parentheses and a trailing minus both mean negative. Values that do not
// fit the stored precision are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = amountNoise.Replace(s)
	if len(s) > 1 && strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		d = d.Abs().Neg()
	}
	d = d.Round(2)
	if d.Abs().GreaterThanOrEqual(models.AmountLimit) {
		return decimal.Zero, fmt.Errorf("amount %q out of range", raw)
	}
	return d, nil
}

// Truncate trims s and cuts it to at most n runes.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
