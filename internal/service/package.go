package service

import (
	"math"

	"github.com/ayurwell-next/internal/models"
)

// volumetricDivisor 体积重换算系数（cm³/kg）
const volumetricDivisor = 5000.0

// PackageLine 计算包裹所需的单行数据
type PackageLine struct {
	Weight   float64
	Length   float64
	Breadth  float64
	Height   float64
	Quantity int
}

// PackageMetrics 包裹重量与尺寸
type PackageMetrics struct {
	ActualWeight     float64
	VolumetricWeight float64
	ChargeableWeight float64
	Length           float64
	Breadth          float64
	Height           float64
}

// ComputePackage 计费重量取实际重量与体积重量的较大值；长宽取各行最大值，高度按数量累加
func ComputePackage(lines []PackageLine) PackageMetrics {
	var metrics PackageMetrics
	for _, line := range lines {
		qty := float64(line.Quantity)
		metrics.ActualWeight += line.Weight * qty
		metrics.VolumetricWeight += line.Length * line.Breadth * line.Height * qty / volumetricDivisor
		metrics.Length = math.Max(metrics.Length, line.Length)
		metrics.Breadth = math.Max(metrics.Breadth, line.Breadth)
		metrics.Height += line.Height * qty
	}
	metrics.ActualWeight = roundWeight(metrics.ActualWeight)
	metrics.VolumetricWeight = roundWeight(metrics.VolumetricWeight)
	metrics.ChargeableWeight = math.Max(metrics.ActualWeight, metrics.VolumetricWeight)
	return metrics
}

func packageLinesFromItems(items []models.OrderItem) []PackageLine {
	lines := make([]PackageLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, PackageLine{
			Weight:   item.Weight,
			Length:   item.Length,
			Breadth:  item.Breadth,
			Height:   item.Height,
			Quantity: item.Quantity,
		})
	}
	return lines
}

func roundWeight(value float64) float64 {
	return math.Round(value*1000) / 1000
}
