package service

import (
	"math"
	"strings"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
)

// CourierStrategy 快递选择策略
type CourierStrategy string

const (
	CourierStrategyCheapest   CourierStrategy = "cheapest"
	CourierStrategyFastest    CourierStrategy = "fastest"
	CourierStrategyBestRating CourierStrategy = "best_rating"
)

// ParseCourierStrategy 解析策略，未知值回落为 cheapest
func ParseCourierStrategy(raw string) CourierStrategy {
	switch CourierStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case CourierStrategyFastest:
		return CourierStrategyFastest
	case CourierStrategyBestRating:
		return CourierStrategyBestRating
	default:
		return CourierStrategyCheapest
	}
}

// SelectCourier 按策略从报价中选择快递公司，无有效报价时返回 ErrNoCourierAvailable
func SelectCourier(quotes []shiprocket.RateQuote, strategy CourierStrategy) (*shiprocket.RateQuote, error) {
	var best *shiprocket.RateQuote
	for i := range quotes {
		quote := &quotes[i]
		if quote.Rate == nil || math.IsNaN(*quote.Rate) || math.IsInf(*quote.Rate, 0) {
			continue
		}
		if best == nil || better(quote, best, strategy) {
			best = quote
		}
	}
	if best == nil {
		return nil, ErrNoCourierAvailable
	}
	selected := *best
	return &selected, nil
}

// better 严格优于才替换，同分保留先出现的报价
func better(candidate, current *shiprocket.RateQuote, strategy CourierStrategy) bool {
	switch strategy {
	case CourierStrategyFastest:
		return candidate.EstimatedDeliveryDays < current.EstimatedDeliveryDays
	case CourierStrategyBestRating:
		return candidate.Rating > current.Rating
	default:
		return *candidate.Rate < *current.Rate
	}
}
