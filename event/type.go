package event

import (
	"errors"
	"fmt"
	"sort"
)

/* Type is the closed set of business events a subscriber can receive
 * Adding a kind means adding a constant AND a catalog entry; the array length
 * assertion below refuses to compile when the two drift apart
 */
type Type int

const (
	OrderCreated Type = iota + 1
	OrderConfirmed
	OrderShipped
	OrderDelivered
	OrderCancelled
	PaymentCaptured
	PaymentFailed
	PaymentRefunded
	ProductCreated
	ProductUpdated
	ProductOutOfStock
	RFQCreated
	RFQQuoteReceived
	RFQAwarded
	RFQClosed
	WebhookTest

	typeCount // sentinel, keep last
)

// Category groups event types for the management API listing
type Category string

const (
	CategoryOrders   Category = "orders"
	CategoryPayments Category = "payments"
	CategoryProducts Category = "products"
	CategoryRFQ      Category = "rfq"
	CategorySystem   Category = "system"
)

// Definition describes one catalog entry
type Definition struct {
	Type        Type     `json:"-"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

var catalog = [...]Definition{
	OrderCreated:      {Name: "order.created", Category: CategoryOrders, Description: "A buyer placed an order"},
	OrderConfirmed:    {Name: "order.confirmed", Category: CategoryOrders, Description: "The seller confirmed an order"},
	OrderShipped:      {Name: "order.shipped", Category: CategoryOrders, Description: "An order left the warehouse"},
	OrderDelivered:    {Name: "order.delivered", Category: CategoryOrders, Description: "An order reached the buyer"},
	OrderCancelled:    {Name: "order.cancelled", Category: CategoryOrders, Description: "An order was cancelled"},
	PaymentCaptured:   {Name: "payment.captured", Category: CategoryPayments, Description: "Funds for an order were captured"},
	PaymentFailed:     {Name: "payment.failed", Category: CategoryPayments, Description: "A payment attempt was declined"},
	PaymentRefunded:   {Name: "payment.refunded", Category: CategoryPayments, Description: "A payment was refunded"},
	ProductCreated:    {Name: "product.created", Category: CategoryProducts, Description: "A product was listed"},
	ProductUpdated:    {Name: "product.updated", Category: CategoryProducts, Description: "A product listing changed"},
	ProductOutOfStock: {Name: "product.out_of_stock", Category: CategoryProducts, Description: "A product ran out of stock"},
	RFQCreated:        {Name: "rfq.created", Category: CategoryRFQ, Description: "A request for quotation was published"},
	RFQQuoteReceived:  {Name: "rfq.quote_received", Category: CategoryRFQ, Description: "A supplier quoted on an RFQ"},
	RFQAwarded:        {Name: "rfq.awarded", Category: CategoryRFQ, Description: "An RFQ was awarded to a supplier"},
	RFQClosed:         {Name: "rfq.closed", Category: CategoryRFQ, Description: "An RFQ closed without award"},
	WebhookTest:       {Name: "webhook.test", Category: CategorySystem, Description: "Synthetic delivery sent on request"},
}

// index 0 is the unused zero Type
var _ = [1]struct{}{}[len(catalog)-int(typeCount)]

var byName = func() map[string]Type {
	m := make(map[string]Type, len(catalog))
	for i := 1; i < len(catalog); i++ {
		m[catalog[i].Name] = Type(i)
	}
	return m
}()

// ErrUnknownType is returned when a name is not in the catalog
var ErrUnknownType = errors.New("unknown event type")

// String returns the wire name of the event type
func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return catalog[t].Name
}

// Valid reports whether t is a catalog member
func (t Type) Valid() bool {
	return t > 0 && t < typeCount
}

// Category returns the group the type belongs to
func (t Type) Category() Category {
	if !t.Valid() {
		return ""
	}
	return catalog[t].Category
}

// Definition returns the catalog entry for t
func (t Type) Definition() Definition {
	if !t.Valid() {
		return Definition{}
	}
	d := catalog[t]
	d.Type = t
	return d
}

// MarshalText encodes the type by name so it can be used in JSON and YAML
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type by name
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType resolves a wire name to its Type
func ParseType(name string) (Type, error) {
	t, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// ParseTypes resolves every name, failing on the first unknown one
func ParseTypes(names []string) ([]Type, error) {
	types := make([]Type, 0, len(names))
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// All returns every catalog type in declaration order
func All() []Type {
	types := make([]Type, 0, len(catalog)-1)
	for i := 1; i < len(catalog); i++ {
		types = append(types, Type(i))
	}
	return types
}

// Group is one category with its event definitions
type Group struct {
	Category Category     `json:"category"`
	Events   []Definition `json:"events"`
}

// Grouped returns the catalog grouped by category, categories sorted by name
func Grouped() []Group {
	idx := make(map[Category]int)
	var groups []Group
	for _, t := range All() {
		d := t.Definition()
		i, ok := idx[d.Category]
		if !ok {
			i = len(groups)
			idx[d.Category] = i
			groups = append(groups, Group{Category: d.Category})
		}
		groups[i].Events = append(groups[i].Events, d)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Category < groups[b].Category })
	return groups
}

// Names renders types as their wire names
func Names(types []Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
