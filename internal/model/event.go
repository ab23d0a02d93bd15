package model

// Event kinds streamed to websocket subscribers.
const (
	EventPriceUpdate   = "price_update"
	EventOrderExecuted = "order_executed"
)

// Event is one message fanned out by the broadcast hub.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// OrderExecutedData is the payload of an order_executed event.
type OrderExecutedData struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}
