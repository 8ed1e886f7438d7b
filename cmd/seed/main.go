// Command seed generates a labelled sample dataset for the PayGuard risk API.
//
// Usage:
//
//	go run ./cmd/seed [-out data]
//
// It writes two files:
//
//	<out>/batch.json  {"transactions": [...]} ready for POST /api/v1/score/batch,
//	                  each item carrying a Class label (1 = fraud, 0 = legitimate)
//	<out>/lists.json  starter list entries loaded by cmd/server -lists
//
// The mix is roughly 70% legitimate customers and 30% fraud: velocity
// bursts, geographic mismatches, high-value first purchases on fresh
// identities and obvious fraud rings. Output is deterministic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"payguard/risk-api/internal/domain"
)

// labeled is one batch item: the scoring payload plus its ground truth.
type labeled struct {
	domain.TransactionInput
	Class int `json:"Class"`
}

// base is the fixed start of the generated 7-day window.
var base = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func main() {
	out := flag.String("out", "data", "output directory")
	flag.Parse()

	rng := rand.New(rand.NewSource(42)) // deterministic seed for reproducibility

	var txns []labeled
	txns = append(txns, generateNormalUsers(rng)...)
	txns = append(txns, generateVelocityAbuse(rng)...)
	txns = append(txns, generateGeoMismatches(rng)...)
	txns = append(txns, generateHighValueOutliers(rng)...)
	txns = append(txns, generateObviousFraudsters(rng)...)

	// Shuffle so patterns aren't trivially grouped in the file.
	rng.Shuffle(len(txns), func(i, j int) {
		txns[i], txns[j] = txns[j], txns[i]
	})

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fail("mkdir", err)
	}
	batchPath := filepath.Join(*out, "batch.json")
	if err := writeJSON(batchPath, map[string]any{"transactions": txns}); err != nil {
		fail("write batch", err)
	}
	listsPath := filepath.Join(*out, "lists.json")
	if err := writeJSON(listsPath, starterLists()); err != nil {
		fail("write lists", err)
	}

	var fraud int
	for _, t := range txns {
		fraud += t.Class
	}
	fmt.Printf("Generated %d transactions (%d fraud) → %s\n", len(txns), fraud, batchPath)
	fmt.Printf("Generated list entries → %s\n", listsPath)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %v\n", what, err)
	os.Exit(1)
}

// ─── Builders ─────────────────────────────────────────────────────────────────

// profile is the stable identity behind a group of transactions.
type profile struct {
	email, ip, country, bin, device, currency string
}

func (p profile) tx(id int, ts time.Time, amount float64, class int) labeled {
	epoch := float64(ts.Unix())
	amt := roundTo2(amount)
	return labeled{
		TransactionInput: domain.TransactionInput{
			TransactionID:     fmt.Sprintf("txn_%05d", id),
			Amount:            &amt,
			Time:              &epoch,
			CardBIN:           p.bin,
			CustomerIP:        p.ip,
			CustomerEmail:     p.email,
			CustomerCountry:   p.country,
			DeviceFingerprint: p.device,
			Currency:          p.currency,
		},
		Class: class,
	}
}

// ─── Normal users (~70%) ──────────────────────────────────────────────────────

var normalUsers = []struct {
	profile
	avgAmount float64
}{
	{profile{"carlos.silva@gmail.com", "177.23.45.12", "BR", "453211", "dev_br_a1b2c3", "BRL"}, 35},
	{profile{"sofia.ramirez@hotmail.com", "187.65.12.34", "MX", "524571", "dev_mx_d4e5f6", "MXN"}, 150},
	{profile{"diego.moreno@yahoo.com.ar", "200.45.67.89", "AR", "516382", "dev_ar_g7h8i9", "ARS"}, 80},
	{profile{"ana.garcia@gmail.com", "190.122.33.44", "CO", "455231", "dev_co_j1k2l3", "COP"}, 45},
	{profile{"emma.jones@outlook.com", "81.2.69.160", "GB", "492181", "dev_gb_m4n5o6", "GBP"}, 60},
	{profile{"liam.smith@gmail.com", "73.22.14.5", "US", "414720", "dev_us_p7q8r9", "USD"}, 120},
	{profile{"mia.schulz@web.de", "91.64.12.77", "DE", "535522", "dev_de_s1t2u3", "EUR"}, 40},
	{profile{"noah.martin@orange.fr", "90.84.11.22", "FR", "497010", "dev_fr_v4w5x6", "EUR"}, 75},
}

func generateNormalUsers(rng *rand.Rand) []labeled {
	var txns []labeled
	txID := 1000

	for _, u := range normalUsers {
		// Each known good customer buys a dozen times over 7 days, in daytime.
		count := 12 + rng.Intn(4)
		for i := 0; i < count; i++ {
			day := time.Duration(i*7/count) * 24 * time.Hour
			hour := time.Duration(9+rng.Intn(11)) * time.Hour
			ts := base.Add(day + hour + time.Duration(rng.Intn(60))*time.Minute)

			// Amounts vary ±30% around the user's average.
			amount := u.avgAmount * (0.7 + rng.Float64()*0.6)
			txns = append(txns, u.tx(txID, ts, amount, 0))
			txID++
		}
	}
	return txns
}

// ─── Velocity abuse ───────────────────────────────────────────────────────────

func generateVelocityAbuse(rng *rand.Rand) []labeled {
	var txns []labeled
	txID := 2000

	// Same disposable email, burst of 8 purchases in 15 minutes.
	burst := profile{"velocity_abuser1@tempmail.com", "201.55.66.77", "BR", "453211", "dev_velocity_aaa", "BRL"}
	start := base.Add(3*24*time.Hour + 2*time.Hour)
	for i := 0; i < 8; i++ {
		ts := start.Add(time.Duration(i*2) * time.Minute)
		txns = append(txns, burst.tx(txID, ts, 49.90+rng.Float64()*5, 1))
		txID++
	}

	// Same device across several throwaway identities.
	start = base.Add(6*24*time.Hour + 23*time.Hour)
	for i := 0; i < 6; i++ {
		p := profile{"", "200.12.34.56", "NG", "411111", "dev_shared_fingerprint_xyz", "USD"}
		if i%2 == 0 {
			p.email = fmt.Sprintf("fraud_d%d@guerrillamail.com", i)
		}
		ts := start.Add(time.Duration(i*4) * time.Minute)
		txns = append(txns, p.tx(txID, ts, 1200+rng.Float64()*300, 1))
		txID++
	}
	return txns
}

// ─── Geographic mismatches ────────────────────────────────────────────────────

func generateGeoMismatches(rng *rand.Rand) []labeled {
	var txns []labeled
	txID := 3000

	mismatches := []struct {
		profile
		amount float64
	}{
		{profile{"buyer1@proton.me", "185.100.87.12", "RU", "400000", "dev_geo_001", "BRL"}, 89.90},
		{profile{"shopper99@webmail.com", "196.216.2.5", "NG", "424242", "dev_geo_002", "MXN"}, 349},
		{profile{"gamer_cn@yopmail.com", "112.77.11.22", "KP", "411111", "dev_geo_003", "COP"}, 750},
		{profile{"vitali_k@inbox.ua", "91.200.12.33", "IR", "", "dev_geo_004", "USD"}, 1200},
	}

	for i, m := range mismatches {
		for j := 0; j < 4; j++ {
			// Late-night hours in the customer's region.
			ts := base.Add(time.Duration(1+i)*24*time.Hour + time.Duration(rng.Intn(5))*time.Hour)
			ts = ts.Add(time.Duration(j*7) * time.Minute)
			txns = append(txns, m.tx(txID, ts, m.amount*(0.8+rng.Float64()*0.4), 1))
			txID++
		}
	}
	return txns
}

// ─── High-value outliers ──────────────────────────────────────────────────────

func generateHighValueOutliers(rng *rand.Rand) []labeled {
	var txns []labeled
	txID := 4000

	outliers := []struct {
		profile
		amount float64
		class  int
	}{
		// Anonymous first purchases far above the usual basket.
		{profile{"", "187.11.22.33", "BR", "", "", "BRL"}, 2500, 1},
		{profile{"", "189.66.77.88", "MX", "510000", "", "MXN"}, 4000, 1},
		// Established customer with a genuine large order.
		{profile{"high_roller@gmail.com", "190.200.11.33", "CO", "461234", "dev_out_004", "USD"}, 1800, 0},
	}

	for i, o := range outliers {
		ts := base.Add(time.Duration(2+i)*24*time.Hour + 15*time.Hour)
		for j := 0; j < 3; j++ {
			day := time.Duration(j*24) * time.Hour
			txns = append(txns, o.tx(txID, ts.Add(day), o.amount*(0.9+rng.Float64()*0.2), o.class))
			txID++
		}
	}
	return txns
}

// ─── Obvious fraudsters ───────────────────────────────────────────────────────

// generateObviousFraudsters creates textbook fraud rings: 3am bursts,
// card cycling and disposable identities from high-risk regions.
func generateObviousFraudsters(rng *rand.Rand) []labeled {
	var txns []labeled
	txID := 5000

	// Ring 1: five test-range cards in eight minutes at 03:00 UTC.
	start := base.Add(2*24*time.Hour + 3*time.Hour)
	for i, bin := range []string{"400000", "411111", "424242", "401288", "555555"} {
		p := profile{"fraud_ring_1@tempmail.net", "185.220.101.5", "RU", bin, "dev_fraud_ring_001", "USD"}
		ts := start.Add(time.Duration(i*100) * time.Second)
		txns = append(txns, p.tx(txID, ts, 99.99, 1))
		txID++
	}

	// Ring 2: card cycling from one IP with no email.
	start = base.Add(4*24*time.Hour + 22*time.Hour)
	for i, bin := range []string{"552000", "524571", "516382", "531904", "455231", "461234"} {
		p := profile{"", "103.91.92.200", "VE", bin, "dev_fraud_ring_002", "USD"}
		ts := start.Add(time.Duration(i*20) * time.Minute)
		txns = append(txns, p.tx(txID, ts, 500+rng.Float64()*200, 1))
		txID++
	}

	// Ring 3: disposable email, high-risk country, off-hours.
	start = base.Add(6*24*time.Hour + 4*time.Hour)
	for i := 0; i < 4; i++ {
		p := profile{"obvious_fraud@disposable.xyz", "196.216.2.100", "NG", "601100", "dev_fraud_ring_003", "USD"}
		ts := start.Add(time.Duration(i*3) * time.Minute)
		txns = append(txns, p.tx(txID, ts, 149.99+rng.Float64()*50, 1))
		txID++
	}
	return txns
}

// ─── Lists ────────────────────────────────────────────────────────────────────

func starterLists() []domain.ListEntry {
	return []domain.ListEntry{
		{
			ID: "seed-blacklist-device", Type: domain.EntityDevice, Value: "dev_fraud_ring_001",
			ListType: domain.ListBlacklist, Reason: "confirmed fraud ring", CreatedAt: base,
		},
		{
			ID: "seed-blacklist-ip", Type: domain.EntityIP, Value: "185.220.101.5",
			ListType: domain.ListBlacklist, Reason: "known Tor exit node", CreatedAt: base,
		},
		{
			ID: "seed-whitelist-email", Type: domain.EntityEmail, Value: "high_roller@gmail.com",
			ListType: domain.ListWhitelist, Reason: "verified VIP customer", CreatedAt: base,
		},
	}
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func roundTo2(f float64) float64 {
	return float64(int(f*100)) / 100
}
