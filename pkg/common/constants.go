package common

const (
	RedisStreamTrackingCycle = "tracker.cycle.request"

	RedisStreamGroup    = "tracker-group"
	RedisStreamConsumer = "tracker-consumer"
)

const (
	RedisKeyQuote      = "market_data:quote:%s:%s"
	RedisKeyFinancials = "market_data:financials:%s:%s"
	RedisKeyUserLock   = "tracker:lock:user:%s"
	RedisKeySymbolLock = "tracker:lock:symbol:%s"
)
