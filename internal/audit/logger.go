package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one structured audit record emitted alongside the database
// print log. The database rows are the durable trail; these events feed
// operational log aggregation.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	Reference   string    `json:"reference"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	FirstSerial int       `json:"first_serial,omitempty"`
	LastSerial  int       `json:"last_serial,omitempty"`
	StockClass  string    `json:"stock_class,omitempty"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogAllocation(reference, entityType, entityID string, first, last int, stockClass string) {
	a.log(Event{
		Timestamp:   time.Now(),
		EventType:   "ALLOCATE",
		Reference:   reference,
		EntityType:  entityType,
		EntityID:    entityID,
		FirstSerial: first,
		LastSerial:  last,
		StockClass:  stockClass,
		Status:      "SUCCESS",
	})
}

func (a *Logger) LogReprint(reference, entityType, entityID string, first, last int, reason string) {
	a.log(Event{
		Timestamp:   time.Now(),
		EventType:   "REPRINT",
		Reference:   reference,
		EntityType:  entityType,
		EntityID:    entityID,
		FirstSerial: first,
		LastSerial:  last,
		Status:      "SUCCESS",
		Details:     map[string]string{"reason": reason},
	})
}

func (a *Logger) LogStockChange(stockClass, txType string, delta int, userName string) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  "STOCK_" + txType,
		StockClass: stockClass,
		Status:     "SUCCESS",
		Details: map[string]any{
			"delta": delta,
			"user":  userName,
		},
	})
}

func (a *Logger) LogError(reference, entityType, entityID string, err error) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  "ERROR",
		Reference:  reference,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     "FAILED",
		Details:    map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
