package entity

// keyed is implemented by records indexed by sku.
type keyed interface {
	Key() string
}

// collection keeps records in insertion order, indexed by key. The first
// record seen for a key wins.
type collection[T keyed] struct {
	order []T
	index map[string]T
}

func newCollection[T keyed]() collection[T] {
	return collection[T]{index: make(map[string]T)}
}

func (c *collection[T]) add(item T) bool {
	if _, ok := c.index[item.Key()]; ok {
		return false
	}
	c.index[item.Key()] = item
	c.order = append(c.order, item)
	return true
}

func (c *collection[T]) get(key string) (T, bool) {
	item, ok := c.index[key]
	return item, ok
}

func (c *collection[T]) all() []T {
	out := make([]T, len(c.order))
	copy(out, c.order)
	return out
}

// Purchases is the sku-keyed result of a purchases listing.
type Purchases struct {
	items collection[*Purchase]
}

// NewPurchases creates an empty collection
func NewPurchases() *Purchases {
	return &Purchases{items: newCollection[*Purchase]()}
}

// Add inserts a purchase; a duplicate sku is ignored and false is returned.
func (p *Purchases) Add(purchase *Purchase) bool {
	return p.items.add(purchase)
}

// Get returns the purchase for a sku, or nil.
func (p *Purchases) Get(sku string) *Purchase {
	purchase, _ := p.items.get(sku)
	return purchase
}

func (p *Purchases) HasItemID(sku string) bool {
	_, ok := p.items.get(sku)
	return ok
}

// All returns purchases in service order
func (p *Purchases) All() []*Purchase {
	return p.items.all()
}

func (p *Purchases) Size() int {
	return len(p.items.order)
}

// Products is the sku-keyed result of a product listing.
type Products struct {
	items collection[*Product]
}

// NewProducts creates an empty collection
func NewProducts() *Products {
	return &Products{items: newCollection[*Product]()}
}

// Add inserts a product; a duplicate sku is ignored and false is returned.
func (p *Products) Add(product *Product) bool {
	return p.items.add(product)
}

// Get returns the product for a sku, or nil.
func (p *Products) Get(sku string) *Product {
	product, _ := p.items.get(sku)
	return product
}

func (p *Products) HasItemID(sku string) bool {
	_, ok := p.items.get(sku)
	return ok
}

// All returns products in service order
func (p *Products) All() []*Product {
	return p.items.all()
}

func (p *Products) Size() int {
	return len(p.items.order)
}
