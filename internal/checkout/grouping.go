package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

// buildSubOrders groups cart lines by store into escrow-held sub-orders.
// Store order follows first appearance in the cart so output is stable.
func buildSubOrders(cart *models.Cart, placedAt time.Time) types.SubOrders {
	var storeOrder []uuid.UUID
	itemsByStore := make(map[uuid.UUID][]types.OrderItem)
	for _, line := range cart.Items {
		if _, seen := itemsByStore[line.StoreID]; !seen {
			storeOrder = append(storeOrder, line.StoreID)
		}
		itemsByStore[line.StoreID] = append(itemsByStore[line.StoreID], types.OrderItem{
			ProductID:     line.ProductID,
			Name:          line.Name,
			UnitPriceKobo: line.UnitPriceKobo,
			Qty:           line.Qty,
		})
	}

	subOrders := make(types.SubOrders, 0, len(storeOrder))
	for _, storeID := range storeOrder {
		items := itemsByStore[storeID]
		var subtotal int64
		for _, item := range items {
			subtotal += item.TotalKobo()
		}
		shipping := cart.QuoteForStore(storeID)

		sub := types.SubOrder{
			ID:             uuid.New(),
			StoreID:        storeID,
			Items:          items,
			Shipping:       shipping,
			SubtotalKobo:   subtotal,
			TotalKobo:      subtotal + shipping.FeeKobo,
			DeliveryStatus: enums.DeliveryStatusOrderPlaced,
			Escrow:         types.Escrow{Held: true},
		}
		sub.AppendHistory(enums.DeliveryStatusOrderPlaced, placedAt, "order placed")
		subOrders = append(subOrders, sub)
	}
	return subOrders
}

// storeIDsOf lists the participating stores in sub-order sequence.
func storeIDsOf(subOrders types.SubOrders) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(subOrders))
	for _, sub := range subOrders {
		ids = append(ids, sub.StoreID)
	}
	return ids
}

func subOrderIDsOf(subOrders types.SubOrders) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(subOrders))
	for _, sub := range subOrders {
		ids = append(ids, sub.ID)
	}
	return ids
}
