package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/orderdesk/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	orderIDRegex      = regexp.MustCompile(`\b[a-f0-9]{32}\b`)
	badConditionRegex = regexp.MustCompile(`mal[\s/-]?estado`)
	claimStatusRegex  = regexp.MustCompile(`faltante|mal estado`)
)

// Deviation sheet columns
const (
	devColDate        = 0
	devColCountry     = 1
	devColType        = 2
	devColOrder       = 7
	devColProduct     = 9
	devColOriginalQty = 11
	devColModifiedQty = 12
	devMinColumns     = 12
)

// Cancellation sheet columns
const (
	cancelColOrder = 1
)

// Claim sheet columns
const (
	claimColDate     = 0
	claimColStatus   = 8
	claimColProduct  = 9
	claimColQuantity = 10
	claimColDoneMark = 12
	claimColOrder    = 15
	claimMinColumns  = 16
)

// deviationCountries are the markets handled by the deviations workflow
var deviationCountries = map[string]bool{"ar": true, "mx": true}

// sheetDateLayouts are tried in order; sheets are filled day-first
var sheetDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"2/1/06",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// WorkItemParser turns worksheet rows into work items
type WorkItemParser struct {
	backofficeURL string
	location      *time.Location
}

// NewWorkItemParser creates a parser. Dates are read in loc; nil means UTC.
func NewWorkItemParser(backofficeURL string, loc *time.Location) *WorkItemParser {
	if loc == nil {
		loc = time.UTC
	}
	return &WorkItemParser{
		backofficeURL: backofficeURL,
		location:      loc,
	}
}

// OrderURL builds the backoffice page of an order from the configured login URL
func (p *WorkItemParser) OrderURL(orderID string) string {
	base := strings.ReplaceAll(p.backofficeURL, "/login", "")
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/orders/%s", base, orderID)
}

// ParseDeviations keeps the AR/MX rows dated on day whose type is faltante or faltante_parcial.
// Rows with an unreadable date or without an order id are rejected.
func (p *WorkItemParser) ParseDeviations(rows [][]string, day time.Time) ([]domain.Deviation, []domain.RejectedRow) {
	var items []domain.Deviation
	var rejected []domain.RejectedRow

	for i, row := range dataRows(rows) {
		rowNum := i + 2
		if len(row) < devMinColumns {
			continue
		}
		country := strings.ToLower(strings.TrimSpace(row[devColCountry]))
		if !deviationCountries[country] {
			continue
		}

		date, err := p.parseDate(row[devColDate])
		if err != nil {
			rejected = append(rejected, domain.RejectedRow{Row: rowNum, Reason: err.Error()})
			continue
		}
		if !sameDay(date, day.In(p.location)) {
			continue
		}

		devType := domain.DeviationType(strings.ToLower(strings.TrimSpace(row[devColType])))
		if devType != domain.DeviationMissing && devType != domain.DeviationPartialMissing {
			continue
		}

		orderID := orderIDRegex.FindString(row[devColOrder])
		if orderID == "" {
			rejected = append(rejected, domain.RejectedRow{Row: rowNum, Reason: "no order id in order column"})
			continue
		}

		original := parseQuantity(row[devColOriginalQty])
		modified := parseDigits(cell(row, devColModifiedQty))

		requested := original
		if devType == domain.DeviationPartialMissing {
			requested = max(original-modified, 0)
		}

		items = append(items, domain.Deviation{
			Row:          rowNum,
			Date:         date,
			Country:      country,
			Type:         devType,
			OrderID:      orderID,
			OrderURL:     p.OrderURL(orderID),
			Product:      strings.TrimSpace(row[devColProduct]),
			OriginalQty:  original,
			ModifiedQty:  modified,
			RequestedQty: requested,
			Reason:       domain.ReasonOperationsMissing,
		})
	}

	return items, rejected
}

// ParseCancellations reads one order id per row from the second column.
// Fully blank rows are ignored; rows with a blank id are rejected.
func (p *WorkItemParser) ParseCancellations(rows [][]string) ([]domain.Cancellation, []domain.RejectedRow) {
	var items []domain.Cancellation
	var rejected []domain.RejectedRow

	for i, row := range dataRows(rows) {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}

		orderID := strings.TrimSpace(cell(row, cancelColOrder))
		if orderID == "" {
			rejected = append(rejected, domain.RejectedRow{Row: rowNum, Reason: "empty order id"})
			continue
		}

		items = append(items, domain.Cancellation{
			Row:      rowNum,
			OrderID:  orderID,
			OrderURL: p.OrderURL(orderID),
			Reason:   domain.ReasonPrepaid,
		})
	}

	return items, rejected
}

// ParseClaims keeps the claims dated on day whose status mentions a missing or damaged product
// (or is blank) and groups them by order in first-seen order. Orders with a line already
// marked done in the sheet are returned separately as done.
func (p *WorkItemParser) ParseClaims(
	rows [][]string,
	day time.Time,
) (orders []domain.ClaimOrder, done []string, rejected []domain.RejectedRow) {
	index := make(map[string]int)
	marked := make(map[string]bool)

	for i, row := range dataRows(rows) {
		rowNum := i + 2
		if len(row) < claimMinColumns || strings.TrimSpace(row[claimColDate]) == "" {
			continue
		}

		date, err := p.parseDate(row[claimColDate])
		if err != nil {
			rejected = append(rejected, domain.RejectedRow{Row: rowNum, Reason: err.Error()})
			continue
		}
		if !sameDay(date, day.In(p.location)) {
			continue
		}

		status := strings.TrimSpace(row[claimColStatus])
		statusLower := strings.ToLower(status)
		if status != "" && !claimStatusRegex.MatchString(statusLower) {
			continue
		}

		orderID := strings.TrimSpace(row[claimColOrder])
		if orderID == "" {
			rejected = append(rejected, domain.RejectedRow{Row: rowNum, Reason: "empty order reference"})
			continue
		}

		if strings.TrimSpace(row[claimColDoneMark]) != "" {
			marked[orderID] = true
		}

		line := domain.ClaimLine{
			Row:      rowNum,
			Date:     date,
			Status:   status,
			Product:  strings.TrimSpace(row[claimColProduct]),
			Quantity: parseDigits(row[claimColQuantity]),
			Reason:   claimReason(statusLower),
		}

		idx, ok := index[orderID]
		if !ok {
			idx = len(orders)
			index[orderID] = idx
			orders = append(orders, domain.ClaimOrder{
				OrderID:  orderID,
				OrderURL: p.OrderURL(orderID),
			})
		}
		orders[idx].Lines = append(orders[idx].Lines, line)
	}

	pending := orders[:0]
	for _, o := range orders {
		if marked[o.OrderID] {
			done = append(done, o.OrderID)
			continue
		}
		pending = append(pending, o)
	}

	return pending, done, rejected
}

// claimReason picks the adjustment reason from a lowercased claim status
func claimReason(status string) string {
	if badConditionRegex.MatchString(status) {
		return domain.ReasonDeliveryBadCondition
	}
	return domain.ReasonDeliveryMissing
}

func (p *WorkItemParser) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sheetDateLayouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unreadable date %q", s)
}

// dataRows drops the header row
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// parseQuantity reads a signed integer, negatives and garbage count as zero
func parseQuantity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseDigits accepts only plain digit strings, anything else counts as zero
func parseDigits(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
