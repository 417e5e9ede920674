package view

import (
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/units"
)

// Binder supplies the action triggers attached to rendered nodes. Binding
// must not perform the action; it only returns a closure over the record.
type Binder interface {
	BindBuy(rec types.PropertyRecord) Trigger
	BindRent(rec types.PropertyRecord) Trigger
	BindEdit(rec types.PropertyRecord) SubmitTrigger
}

// Renderer builds nodes from records. A nil Binder yields nodes without
// triggers.
type Renderer struct {
	binder Binder
}

// NewRenderer creates a renderer that binds triggers through b.
func NewRenderer(b Binder) *Renderer {
	return &Renderer{binder: b}
}

// RenderPublic renders a property the viewer does not own. A buy offer is
// present iff the record is for sale and a rent offer iff it is for rent.
// With neither, the result is a no-action card.
func (r *Renderer) RenderPublic(rec types.PropertyRecord) Node {
	n := baseNode(rec)

	if rec.ForSale {
		o := Offer{Action: ActionBuy, Amount: units.ToDisplay(rec.Price)}
		if r.binder != nil {
			o.Trigger = r.binder.BindBuy(rec)
		}
		n.Offers = append(n.Offers, o)
	}
	if rec.ForRent {
		o := Offer{Action: ActionRent, Amount: units.ToDisplay(rec.RentPayment)}
		if r.binder != nil {
			o.Trigger = r.binder.BindRent(rec)
		}
		n.Offers = append(n.Offers, o)
	}

	if len(n.Offers) == 0 {
		n.Kind = KindNoActionCard
	} else {
		n.Kind = KindPublicCard
	}
	return n
}

// RenderOwned renders a property the viewer owns as an edit form
// pre-filled with the current price, sale flag, rent and rent flag.
func (r *Renderer) RenderOwned(rec types.PropertyRecord) Node {
	n := baseNode(rec)
	n.Kind = KindOwnedForm
	n.Form = &Form{EditValues: EditValues{
		Price:       units.ToDisplay(rec.Price),
		ForSale:     rec.ForSale,
		RentPayment: units.ToDisplay(rec.RentPayment),
		ForRent:     rec.ForRent,
	}}
	if r.binder != nil {
		n.Form.Submit = r.binder.BindEdit(rec)
	}
	return n
}

// RenderAll renders both partitions, preserving their order.
func (r *Renderer) RenderAll(owned, notOwned []types.PropertyRecord) (ownedNodes, publicNodes []Node) {
	ownedNodes = make([]Node, 0, len(owned))
	for _, rec := range owned {
		ownedNodes = append(ownedNodes, r.RenderOwned(rec))
	}
	publicNodes = make([]Node, 0, len(notOwned))
	for _, rec := range notOwned {
		publicNodes = append(publicNodes, r.RenderPublic(rec))
	}
	return ownedNodes, publicNodes
}

func baseNode(rec types.PropertyRecord) Node {
	return Node{
		ID:              rec.ID,
		PropertyType:    rec.PropertyType,
		PropertyAddress: rec.PropertyAddress,
		ImageURL:        rec.ImageURL,
		Owner:           rec.Owner,
	}
}
