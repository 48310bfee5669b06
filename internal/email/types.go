package email

import "time"

// Email is one outgoing message.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body,omitempty"`
	HTMLBody string `json:"htmlBody,omitempty"`
}

// TemplateData is the data passed to templates
type TemplateData map[string]interface{}

// job is the queued form of an Email.
type job struct {
	Email   Email     `json:"email"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}
