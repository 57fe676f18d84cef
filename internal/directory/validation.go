package directory

import (
	"fmt"
	"strings"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

func validateProduct(p Product) error {
	if p.OrgID == 0 {
		return fmt.Errorf("directory: org required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("directory: product sku required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("directory: product name required: %w", shared.ErrValidation)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("directory: unit price must be >= 0: %w", shared.ErrValidation)
	}
	return nil
}

func validateVendor(v Vendor) error {
	if v.OrgID == 0 {
		return fmt.Errorf("directory: org required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("directory: vendor name required: %w", shared.ErrValidation)
	}
	return nil
}

func validateWarehouse(w Warehouse) error {
	if w.OrgID == 0 {
		return fmt.Errorf("directory: org required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(w.Code) == "" {
		return fmt.Errorf("directory: warehouse code required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("directory: warehouse name required: %w", shared.ErrValidation)
	}
	for _, z := range w.Zones {
		if strings.TrimSpace(z.Name) == "" {
			return fmt.Errorf("directory: zone name required: %w", shared.ErrValidation)
		}
	}
	return nil
}
