package models

// MessageTemplate is reusable message content referenced by message nodes.
type MessageTemplate struct {
	ID      string  `json:"id"      validate:"required"`
	Name    string  `json:"name"`
	Channel Channel `json:"channel" validate:"required,oneof=email sms"`
	Subject string  `json:"subject,omitempty"`
	Body    string  `json:"body"    validate:"required"`
}
