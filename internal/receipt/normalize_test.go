package receipt

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeLooseDocument(t *testing.T) {
	raw := []byte(`{
		"shop_name": "Warung Sederhana",
		"shop_address": "Jl. Merdeka 1",
		"date": "2026-08-30",
		"items": [
			{"name": "Es Kopi Susu", "price": "18,000", "quantity": "2", "total": "36,000"},
			{"name": "Roti Bakar", "price": 15000}
		],
		"totals": {
			"total": 51000,
			"discount": "5,000",
			"tax": {"total_tax": "3,600"},
			"payment": 60000
		},
		"service_charge": "2,550"
	}`)

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := Normalize(doc)

	if r.ShopName != "Warung Sederhana" {
		t.Errorf("shop name = %q", r.ShopName)
	}
	if len(r.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(r.Items))
	}

	first := r.Items[0]
	if first.ID != "es_kopi_susu_0" {
		t.Errorf("derived id = %q, want es_kopi_susu_0", first.ID)
	}
	if !first.UnitPrice.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("unit price = %s, want 18000", first.UnitPrice)
	}
	if first.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", first.Quantity)
	}
	if !first.LineTotal.Equal(decimal.NewFromInt(36000)) {
		t.Errorf("line total = %s, want 36000", first.LineTotal)
	}

	// Missing quantity floors to 1; missing line total is derived.
	second := r.Items[1]
	if second.Quantity != 1 {
		t.Errorf("defaulted quantity = %d, want 1", second.Quantity)
	}
	if !second.LineTotal.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("derived line total = %s, want 15000", second.LineTotal)
	}

	if !r.Totals.Discount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("discount = %s, want 5000", r.Totals.Discount)
	}
	if !r.Totals.Tax.Equal(decimal.NewFromInt(3600)) {
		t.Errorf("nested tax = %s, want 3600", r.Totals.Tax)
	}
	if !r.Totals.ServiceCharge.Equal(decimal.NewFromInt(2550)) {
		t.Errorf("top-level service charge = %s, want 2550", r.Totals.ServiceCharge)
	}
	if !r.Totals.Payment.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("payment = %s, want 60000", r.Totals.Payment)
	}
}

func TestNormalizeDefaultsForGarbage(t *testing.T) {
	raw := []byte(`{
		"items": [
			{"name": "Mystery", "price": "not a number", "quantity": {"nested": true}}
		],
		"totals": {"total": null, "discount": "abc", "tax": []}
	}`)

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := Normalize(doc)

	item := r.Items[0]
	if !item.UnitPrice.IsZero() {
		t.Errorf("unparseable price = %s, want 0", item.UnitPrice)
	}
	if item.Quantity != 1 {
		t.Errorf("unparseable quantity = %d, want 1", item.Quantity)
	}
	if !r.Totals.Total.IsZero() || !r.Totals.Discount.IsZero() || !r.Totals.Tax.IsZero() {
		t.Errorf("garbage totals did not default to zero: %+v", r.Totals)
	}
}

func TestNormalizeClampsNegativeAmounts(t *testing.T) {
	doc := &Document{
		Items: []DocumentItem{
			{Name: "Refund Line", Price: []byte(`-5000`), Quantity: []byte(`1`)},
		},
		Totals: &DocumentTotals{Discount: []byte(`-100`)},
	}

	r := Normalize(doc)
	if !r.Items[0].UnitPrice.IsZero() {
		t.Errorf("negative price = %s, want 0", r.Items[0].UnitPrice)
	}
	if !r.Totals.Discount.IsZero() {
		t.Errorf("negative discount = %s, want 0", r.Totals.Discount)
	}
}

func TestNormalizeReceiptIdempotent(t *testing.T) {
	doc := &Document{
		ShopName: "Kedai Kopi",
		Items: []DocumentItem{
			{Name: "Kopi Tubruk", Price: []byte(`"12,500"`), Quantity: []byte(`3`)},
			{ID: "custom_id", Name: "Pisang Goreng", Price: []byte(`8000`)},
		},
		Totals: &DocumentTotals{Total: []byte(`45500`), Discount: []byte(`1000`)},
	}

	once := Normalize(doc)
	twice := NormalizeReceipt(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization is not a fixed point:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestNormalizeKeepsExplicitItemID(t *testing.T) {
	doc := &Document{
		Items: []DocumentItem{{ID: "srv_42", Name: "Sate Ayam", Price: []byte(`25000`)}},
	}
	r := Normalize(doc)
	if r.Items[0].ID != "srv_42" {
		t.Errorf("id = %q, want srv_42 preserved", r.Items[0].ID)
	}
}

func TestNormalizeTopLevelServiceChargeWins(t *testing.T) {
	doc := &Document{
		Items:         []DocumentItem{{Name: "Nasi Goreng", Price: []byte(`20000`)}},
		Totals:        &DocumentTotals{ServiceCharge: []byte(`1000`)},
		ServiceCharge: []byte(`"2,500"`),
	}
	r := Normalize(doc)
	if !r.Totals.ServiceCharge.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("service charge = %s, want top-level 2500 over totals 1000", r.Totals.ServiceCharge)
	}

	// Without the top-level field the totals block still applies.
	doc.ServiceCharge = nil
	r = Normalize(doc)
	if !r.Totals.ServiceCharge.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("fallback service charge = %s, want 1000", r.Totals.ServiceCharge)
	}
}

func TestNormalizeMissingTotalsBlock(t *testing.T) {
	doc := &Document{
		Items: []DocumentItem{{Name: "Air Mineral", Price: []byte(`5000`)}},
	}
	r := Normalize(doc)
	if !r.Totals.Total.IsZero() {
		t.Errorf("totals should default to zero, got %+v", r.Totals)
	}
	if !r.Subtotal().Equal(decimal.NewFromInt(5000)) {
		t.Errorf("subtotal = %s, want 5000", r.Subtotal())
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	if _, err := Parse([]byte("<html>gateway error</html>")); err == nil {
		t.Error("expected an error for a non-JSON body")
	}
}
