package fulfillment

import (
	"sort"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
)

// AllocationPolicy decide en qué orden se drenan los bins candidatos al asignar
// un SKU. Recibe los bins ya bloqueados (en orden de bin_id) y devuelve el orden
// de consumo; no muta la lista de entrada.
type AllocationPolicy interface {
	Name() string
	Order(bins []*entity.BinStockRecord) []*entity.BinStockRecord
}

type smallestBinFirst struct{}

// SmallestBinFirst drena primero los bins con menor cantidad física: vacía
// ubicaciones casi agotadas para liberarlas rápido al putaway. Es la política
// por defecto.
func SmallestBinFirst() AllocationPolicy { return smallestBinFirst{} }

func (smallestBinFirst) Name() string { return "smallest_bin_first" }

func (smallestBinFirst) Order(bins []*entity.BinStockRecord) []*entity.BinStockRecord {
	out := make([]*entity.BinStockRecord, len(bins))
	copy(out, bins)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity < out[j].Quantity
		}
		return out[i].BinID < out[j].BinID
	})
	return out
}

type largestBinFirst struct{}

// LargestBinFirst drena primero los bins más llenos (menos visitas por picking).
func LargestBinFirst() AllocationPolicy { return largestBinFirst{} }

func (largestBinFirst) Name() string { return "largest_bin_first" }

func (largestBinFirst) Order(bins []*entity.BinStockRecord) []*entity.BinStockRecord {
	out := make([]*entity.BinStockRecord, len(bins))
	copy(out, bins)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].BinID < out[j].BinID
	})
	return out
}
