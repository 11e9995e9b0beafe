package service

import (
	"errors"
	"math"
	"testing"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
)

func sampleQuotes() []shiprocket.RateQuote {
	return []shiprocket.RateQuote{
		{CourierID: "10", Name: "Delhivery", Rate: floatPtr(120), EstimatedDeliveryDays: 4, Rating: 4.1},
		{CourierID: "24", Name: "Xpressbees", Rate: floatPtr(95), EstimatedDeliveryDays: 5, Rating: 3.8},
		{CourierID: "33", Name: "Bluedart", Rate: floatPtr(150), EstimatedDeliveryDays: 2, Rating: 4.6},
	}
}

func TestSelectCourierStrategies(t *testing.T) {
	cases := map[CourierStrategy]string{
		CourierStrategyCheapest:   "24",
		CourierStrategyFastest:    "33",
		CourierStrategyBestRating: "33",
	}
	for strategy, want := range cases {
		got, err := SelectCourier(sampleQuotes(), strategy)
		if err != nil {
			t.Fatalf("%s: select failed: %v", strategy, err)
		}
		if got.CourierID != want {
			t.Fatalf("%s: expected courier %s, got %s", strategy, want, got.CourierID)
		}
	}
}

func TestSelectCourierSkipsUnusableRates(t *testing.T) {
	quotes := []shiprocket.RateQuote{
		{CourierID: "1", Rate: nil},
		{CourierID: "2", Rate: floatPtr(math.NaN())},
		{CourierID: "3", Rate: floatPtr(math.Inf(1))},
		{CourierID: "4", Rate: floatPtr(88)},
		{CourierID: "5", Rate: floatPtr(88)},
	}
	got, err := SelectCourier(quotes, CourierStrategyCheapest)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got.CourierID != "4" {
		t.Fatalf("tie should keep first quote, got %s", got.CourierID)
	}

	if _, err := SelectCourier(quotes[:3], CourierStrategyCheapest); !errors.Is(err, ErrNoCourierAvailable) {
		t.Fatalf("expected no courier available, got %v", err)
	}
	if _, err := SelectCourier(nil, CourierStrategyFastest); !errors.Is(err, ErrNoCourierAvailable) {
		t.Fatalf("expected no courier available for empty quotes, got %v", err)
	}
}

func TestSelectCourierReturnsCopy(t *testing.T) {
	quotes := sampleQuotes()
	got, _ := SelectCourier(quotes, CourierStrategyCheapest)
	got.Name = "changed"
	if quotes[1].Name != "Xpressbees" {
		t.Fatalf("selection must not alias input quotes")
	}
}

func TestParseCourierStrategy(t *testing.T) {
	if ParseCourierStrategy(" Fastest ") != CourierStrategyFastest {
		t.Fatalf("expected fastest")
	}
	if ParseCourierStrategy("best_rating") != CourierStrategyBestRating {
		t.Fatalf("expected best_rating")
	}
	if ParseCourierStrategy("unknown") != CourierStrategyCheapest || ParseCourierStrategy("") != CourierStrategyCheapest {
		t.Fatalf("unknown strategy should fall back to cheapest")
	}
}
