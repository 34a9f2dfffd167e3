// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

// ClientMetadata identifies the caller of a payment operation for the
// audit trail.
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID attaches the request id assigned by the HTTP layer
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}
