package domain

// ConsumerStats — снимок счётчиков одного цикла потребления.
type ConsumerStats struct {
	Consumer           string `json:"consumer"`
	State              string `json:"state"`
	InFlight           int    `json:"in_flight"`
	Cycles             uint64 `json:"cycles"`
	Fetched            uint64 `json:"fetched"`
	Succeeded          uint64 `json:"succeeded"`
	FailedNoAck        uint64 `json:"failed_no_ack"`
	AckErrors          uint64 `json:"ack_errors"`
	ConnectivityErrors uint64 `json:"connectivity_errors"`
	AbandonedExpired   uint64 `json:"abandoned_expired"`
}
