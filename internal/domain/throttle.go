package domain

// ThrottleLedger is the per-key record of recent send timestamps (epoch
// seconds, non-decreasing). Version is the optimistic-concurrency token;
// zero means the ledger has never been stored.
type ThrottleLedger struct {
	Key     string  `json:"key" dynamodbav:"throttle_key"`
	Sends   []int64 `json:"sends" dynamodbav:"sends"`
	Version int64   `json:"version" dynamodbav:"version"`
}
