package service

import (
	"testing"

	"github.com/ayurwell-next/internal/models"
)

func TestComputePackageUsesHeavierWeight(t *testing.T) {
	metrics := ComputePackage([]PackageLine{
		{Weight: 0.2, Length: 30, Breadth: 20, Height: 10, Quantity: 1},
	})
	if metrics.ActualWeight != 0.2 || metrics.VolumetricWeight != 1.2 {
		t.Fatalf("unexpected weights: %+v", metrics)
	}
	if metrics.ChargeableWeight != 1.2 {
		t.Fatalf("expected volumetric weight to be chargeable, got %v", metrics.ChargeableWeight)
	}
}

func TestComputePackageStacksLines(t *testing.T) {
	metrics := ComputePackage([]PackageLine{
		{Weight: 0.5, Length: 10, Breadth: 10, Height: 5, Quantity: 2},
		{Weight: 0.25, Length: 20, Breadth: 8, Height: 4, Quantity: 1},
	})
	if metrics.ActualWeight != 1.25 {
		t.Fatalf("expected actual weight 1.25, got %v", metrics.ActualWeight)
	}
	if metrics.Length != 20 || metrics.Breadth != 10 || metrics.Height != 14 {
		t.Fatalf("unexpected dimensions: %+v", metrics)
	}
	// 10*10*5*2/5000 + 20*8*4/5000 = 0.2 + 0.128
	if metrics.VolumetricWeight != 0.328 {
		t.Fatalf("expected volumetric weight 0.328, got %v", metrics.VolumetricWeight)
	}
	if metrics.ChargeableWeight != 1.25 {
		t.Fatalf("expected actual weight to be chargeable, got %v", metrics.ChargeableWeight)
	}
}

func TestPackageLinesFromItems(t *testing.T) {
	lines := packageLinesFromItems([]models.OrderItem{
		{Weight: 0.3, Length: 12, Breadth: 6, Height: 3, Quantity: 4},
	})
	if len(lines) != 1 || lines[0].Quantity != 4 || lines[0].Length != 12 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if empty := ComputePackage(nil); empty.ChargeableWeight != 0 {
		t.Fatalf("empty package should weigh nothing")
	}
}
