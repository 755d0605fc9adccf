package marketdata

import (
	"math/rand"
	"time"
)

// GenerateSampleCloses produces a random-walk daily close series for dev
// mode, weekdays only, starting at startPrice. Deterministic for a given
// seed so dev backtests are reproducible.
func GenerateSampleCloses(start time.Time, numDays int, startPrice float64, seed int64) []DailyClose {
	rng := rand.New(rand.NewSource(seed))

	closes := make([]DailyClose, 0, numDays)
	price := startPrice
	day := start

	for len(closes) < numDays {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			price += rng.NormFloat64() * 0.5
			if price < 1 {
				price = 1
			}
			closes = append(closes, DailyClose{
				Date:  day.Format(DateFormat),
				Close: price,
			})
		}
		day = day.AddDate(0, 0, 1)
	}

	return closes
}

// SeedSampleHistory fills the price repository with sample data for every
// symbol that has no stored history yet. Returns the number of symbols seeded.
func SeedSampleHistory(repo *PriceRepository, symbols []string, start time.Time, numDays int) (int, error) {
	seeded := 0
	for i, symbol := range symbols {
		count, err := repo.CountDailyCloses(symbol)
		if err != nil {
			return seeded, err
		}
		if count > 0 {
			continue
		}

		// Distinct seed and base price per symbol so series differ
		closes := GenerateSampleCloses(start, numDays, 100+float64(i)*10, int64(i+1))
		if err := repo.SaveDailyCloses(symbol, closes); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
