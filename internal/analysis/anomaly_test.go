package analysis

import (
	"strings"
	"testing"
)

func TestDetectTooFewTransactions(t *testing.T) {
	d := NewAnomalyDetector()
	txs := []Transaction{
		{Merchant: "A", Amount: 100, Date: "2025-03-01", Category: "food"},
		{Merchant: "B", Amount: 5000, Date: "2025-03-02", Category: "food"},
		{Merchant: "C", Amount: 120, Date: "2025-03-03", Category: "food"},
		{Merchant: "D", Amount: 90, Date: "2025-03-04", Category: "food"},
	}
	if got := d.Detect(txs); len(got) != 0 {
		t.Fatalf("expected no anomalies for %d transactions, got %d", len(txs), len(got))
	}
}

func TestDetectNoVariance(t *testing.T) {
	d := NewAnomalyDetector()
	var txs []Transaction
	for i := 0; i < 8; i++ {
		txs = append(txs, Transaction{
			Merchant: "SameShop",
			Amount:   250,
			Date:     "2025-03-0" + string(rune('1'+i)),
			Category: "groceries",
		})
	}
	if got := d.Detect(txs); len(got) != 0 {
		t.Fatalf("identical amounts must produce no anomalies, got %d", len(got))
	}
}

func TestDetectLargeOutlier(t *testing.T) {
	d := NewAnomalyDetector()
	txs := []Transaction{
		{Merchant: "Shop A", Amount: 95, Date: "2025-03-01", Category: "groceries"},
		{Merchant: "Shop B", Amount: 100, Date: "2025-03-02", Category: "groceries"},
		{Merchant: "Shop C", Amount: 105, Date: "2025-03-03", Category: "groceries"},
		{Merchant: "Shop D", Amount: 98, Date: "2025-03-04", Category: "groceries"},
		{Merchant: "Shop E", Amount: 102, Date: "2025-03-05", Category: "groceries"},
		{Merchant: "Shop F", Amount: 97, Date: "2025-03-06", Category: "groceries"},
		{Merchant: "Shop G", Amount: 103, Date: "2025-03-07", Category: "groceries"},
		{Merchant: "Shop H", Amount: 99, Date: "2025-03-08", Category: "groceries"},
		{Merchant: "Shop I", Amount: 101, Date: "2025-03-09", Category: "groceries"},
		{Merchant: "Electronics Mega", Amount: 10000, Date: "2025-03-10", Category: "groceries"},
	}

	got := d.Detect(txs)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 anomaly, got %d: %+v", len(got), got)
	}
	a := got[0]
	if a.Merchant != "Electronics Mega" {
		t.Errorf("flagged merchant = %q", a.Merchant)
	}
	if a.Severity != SeverityHigh {
		t.Errorf("severity = %s, want HIGH", a.Severity)
	}
	if a.ZScore <= 2 {
		t.Errorf("z-score = %v, want > 2", a.ZScore)
	}
	if !a.IQRFlag {
		t.Error("IQR flag not set for extreme outlier")
	}
	if !strings.Contains(a.DetectionMethod, "category_zscore") {
		t.Errorf("detection method %q missing category_zscore", a.DetectionMethod)
	}
	if !strings.Contains(a.DetectionMethod, "iqr") {
		t.Errorf("detection method %q missing iqr", a.DetectionMethod)
	}
}

func TestDetectDeduplicates(t *testing.T) {
	d := NewAnomalyDetector()
	baseline := []float64{95, 100, 105, 98, 102, 97, 103, 99, 101, 100, 96, 104}
	var txs []Transaction
	for i, amt := range baseline {
		txs = append(txs, Transaction{
			Merchant: "Shop " + string(rune('A'+i)),
			Amount:   amt,
			Date:     "2025-03-01",
			Category: "groceries",
		})
	}
	txs = append(txs,
		Transaction{Merchant: "BigShop", Amount: 9000, Date: "2025-03-10", Category: "groceries"},
		Transaction{Merchant: "BigShop", Amount: 9000, Date: "2025-03-10", Category: "groceries"},
	)

	got := d.Detect(txs)
	count := 0
	for _, a := range got {
		if a.Merchant == "BigShop" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate transaction flagged %d times, want 1", count)
	}
}

func TestDetectOrdering(t *testing.T) {
	d := NewAnomalyDetector()
	baseline := []float64{95, 100, 105, 98, 102, 97, 103, 99, 101}
	var txs []Transaction
	for _, category := range []string{"food", "transport"} {
		for i, amt := range baseline {
			txs = append(txs, Transaction{
				Merchant: category + " shop " + string(rune('a'+i)),
				Amount:   amt,
				Date:     "2025-03-01",
				Category: category,
			})
		}
	}
	txs = append(txs,
		Transaction{Merchant: "Huge Spend", Amount: 10000, Date: "2025-03-10", Category: "food"},
		Transaction{Merchant: "Big Spend", Amount: 6000, Date: "2025-03-11", Category: "transport"},
	)

	got := d.Detect(txs)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 anomalies, got %d", len(got))
	}
	if len(got) > maxAnomalies {
		t.Fatalf("anomaly count %d exceeds cap %d", len(got), maxAnomalies)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Severity.rank() > got[i].Severity.rank() {
			t.Fatalf("severity ordering violated at index %d", i)
		}
		if got[i-1].Severity == got[i].Severity && got[i-1].ZScore < got[i].ZScore {
			t.Fatalf("z-score ordering violated at index %d", i)
		}
	}
	if got[0].Merchant != "Huge Spend" {
		t.Errorf("largest outlier not first: %q", got[0].Merchant)
	}
}
