package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Customer struct {
	ID         int64
	Name       string
	Segment    string
	Country    string
	SignupDate time.Time
}

type Order struct {
	ID         int64
	CustomerID int64
	OrderDate  time.Time
	Region     string
	Category   string
	Units      int
	UnitPrice  float64
	Amount     float64
	Status     string
}

type Event struct {
	ID         int64
	OccurredAt time.Time
	UserID     string
	EventType  string
	Device     string
	Country    string
	// Amount is nil for events that carry no monetary value.
	Amount *float64
}

var (
	segments   = []string{"enterprise", "mid-market", "smb", "consumer"}
	countries  = []string{"US", "DE", "GB", "IN", "JP", "BR"}
	regions    = []string{"north", "south", "east", "west"}
	devices    = []string{"desktop", "mobile", "tablet"}
	firstNames = []string{"Ada", "Grace", "Linus", "Barbara", "Ken", "Margaret", "Dennis", "Frances"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Liskov", "Thompson", "Hamilton", "Ritchie", "Allen"}
)

type category struct {
	name     string
	minPrice float64
	maxPrice float64
}

var categories = []category{
	{"books", 8, 45},
	{"electronics", 40, 900},
	{"garden", 12, 180},
	{"grocery", 2, 30},
	{"toys", 6, 120},
}

// Generator produces a reproducible data set for a given seed and calendar
// window.
type Generator struct {
	rnd       *rand.Rand
	start     time.Time
	days      int
	customers int64
	orderSeq  int64
	eventSeq  int64
}

func NewGenerator(seed int64, start time.Time, days int, customers int) *Generator {
	return &Generator{
		rnd:       rand.New(rand.NewSource(seed)),
		start:     start.UTC().Truncate(24 * time.Hour),
		days:      days,
		customers: int64(customers),
	}
}

func (g *Generator) Customer(id int64) Customer {
	return Customer{
		ID:         id,
		Name:       pickOne(g.rnd, firstNames) + " " + pickOne(g.rnd, lastNames),
		Segment:    pickOne(g.rnd, segments),
		Country:    pickOne(g.rnd, countries),
		SignupDate: g.day().AddDate(0, 0, -g.rnd.Intn(365)),
	}
}

func (g *Generator) NextOrder() Order {
	g.orderSeq++
	cat := categories[g.rnd.Intn(len(categories))]
	units := 1 + g.rnd.Intn(6)
	price := round2(cat.minPrice + g.rnd.Float64()*(cat.maxPrice-cat.minPrice))
	return Order{
		ID:         g.orderSeq,
		CustomerID: 1 + g.rnd.Int63n(g.customers),
		OrderDate:  g.day(),
		Region:     pickOne(g.rnd, regions),
		Category:   cat.name,
		Units:      units,
		UnitPrice:  price,
		Amount:     round2(price * float64(units)),
		Status:     g.pickStatus(),
	}
}

func (g *Generator) NextEvent() Event {
	g.eventSeq++
	eventType := g.pickEventType()
	event := Event{
		ID:         g.eventSeq,
		OccurredAt: g.day().Add(time.Duration(g.rnd.Intn(86400)) * time.Second),
		UserID:     fmt.Sprintf("user-%04d", 1+g.rnd.Int63n(g.customers)),
		EventType:  eventType,
		Device:     pickOne(g.rnd, devices),
		Country:    pickOne(g.rnd, countries),
	}
	if amount, ok := g.pickAmount(eventType); ok {
		event.Amount = &amount
	}
	return event
}

func (g *Generator) day() time.Time {
	return g.start.AddDate(0, 0, g.rnd.Intn(g.days))
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 80:
		return "completed"
	case p < 92:
		return "shipped"
	case p < 97:
		return "returned"
	default:
		return "cancelled"
	}
}

func (g *Generator) pickEventType() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 55:
		return "page_view"
	case p < 75:
		return "search"
	case p < 88:
		return "add_to_cart"
	case p < 97:
		return "checkout"
	default:
		return "purchase"
	}
}

func (g *Generator) pickAmount(eventType string) (float64, bool) {
	switch eventType {
	case "purchase":
		return round2(20 + g.rnd.Float64()*280), true
	case "checkout":
		return round2(15 + g.rnd.Float64()*240), true
	case "add_to_cart":
		return round2(5 + g.rnd.Float64()*120), true
	default:
		return 0, false
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
