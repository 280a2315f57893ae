package catalog

import (
	"github.com/shopspring/decimal"
)

// BulkToggle sets the enabled flag of every tool whose composite key is in
// keys. Unknown keys are ignored. It returns the number of tools changed.
func BulkToggle(c Catalog, keys []string, enabled bool) (Catalog, int) {
	out := c.Clone()
	want := keySet(keys)
	n := 0
	out.Walk(func(loc ToolLocation, t *Tool) {
		if _, ok := want[loc.Key()]; !ok {
			return
		}
		t.Enabled = boolPtr(enabled)
		n++
	})
	return out, n
}

// BulkAdjustPrice adds delta to every numeric pricing entry of the selected
// tools. Results are clamped at zero and rounded half away from zero to two
// decimals. Text entries and deposits are left alone.
func BulkAdjustPrice(c Catalog, keys []string, delta decimal.Decimal) (Catalog, int) {
	out := c.Clone()
	want := keySet(keys)
	n := 0
	out.Walk(func(loc ToolLocation, t *Tool) {
		if _, ok := want[loc.Key()]; !ok {
			return
		}
		for i := range t.Pricing.entries {
			e := &t.Pricing.entries[i]
			if e.Value.IsText {
				continue
			}
			e.Value = Num(adjust(e.Value.Number, delta))
		}
		n++
	})
	return out, n
}

func adjust(price float64, delta decimal.Decimal) float64 {
	v := decimal.NewFromFloat(price).Add(delta)
	if v.IsNegative() {
		v = decimal.Zero
	}
	f, _ := v.Round(2).Float64()
	return f
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
