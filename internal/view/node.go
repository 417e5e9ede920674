// Package view turns classified property records into presentation nodes.
//
// A node is one of three variants. Public cards are shown for properties the
// viewer does not own, owned forms for properties the viewer owns, and
// no-action cards for properties that are neither for sale nor for rent.
// Action triggers are bound by whoever supplies the Binder, so the renderer
// itself never talks to the ledger.
package view

import "context"

// Kind identifies the node variant.
type Kind string

const (
	KindPublicCard   Kind = "public_card"
	KindOwnedForm    Kind = "owned_form"
	KindNoActionCard Kind = "no_action_card"
)

// Action names an affordance offered on a public card.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionRent Action = "rent"
)

// Trigger performs a bound action.
type Trigger func(ctx context.Context) error

// EditValues are the editable fields of an owned form, as entered by the
// viewer in display units.
type EditValues struct {
	Price       string `json:"price"`
	ForSale     bool   `json:"for_sale"`
	RentPayment string `json:"rent_payment"`
	ForRent     bool   `json:"for_rent"`
}

// SubmitTrigger submits an edited owned form.
type SubmitTrigger func(ctx context.Context, values EditValues) error

// Offer is a buy or rent affordance with its display amount.
type Offer struct {
	Action  Action  `json:"action"`
	Amount  string  `json:"amount"`
	Trigger Trigger `json:"-"`
}

// Form is the pre-filled edit form of an owned property.
type Form struct {
	EditValues
	Submit SubmitTrigger `json:"-"`
}

// Node is one rendered property.
type Node struct {
	Kind            Kind    `json:"kind"`
	ID              uint64  `json:"id"`
	PropertyType    string  `json:"property_type"`
	PropertyAddress string  `json:"property_address"`
	ImageURL        string  `json:"image_url,omitempty"`
	Owner           string  `json:"owner"`
	Offers          []Offer `json:"offers,omitempty"`
	Form            *Form   `json:"form,omitempty"`
}

// Offer returns the node's offer for action, if it has one.
func (n Node) Offer(action Action) (Offer, bool) {
	for _, o := range n.Offers {
		if o.Action == action {
			return o, true
		}
	}
	return Offer{}, false
}
