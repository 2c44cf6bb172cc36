package dynamo

// DynamoDB attribute names used in expressions across all repos.
const (
	fieldStatus      = "status"
	fieldUpdatedAt   = "updated_at"
	fieldRead        = "read"
	fieldRecipient   = "recipient"
	fieldThrottleKey = "throttle_key"
	fieldVersion     = "version"
	fieldExpiresAt   = "expires_at"
)
